package tasks

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeTaskNotFound  = "TASK_NOT_FOUND"
	TextCodeInvalidStatus = "INVALID_TASK_STATUS"
)

// ErrTaskNotFound is returned when the target task does not exist
var ErrTaskNotFound = errors.New("Task not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeTaskNotFound)

// ErrInvalidStatus is returned for a status outside the task status set
var ErrInvalidStatus = errors.New("invalid task status", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInvalidStatus)

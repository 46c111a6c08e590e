package api

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Envelope wraps every successful response
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorEnvelope wraps every error response
type ErrorEnvelope struct {
	Success bool          `json:"success"`
	Error   *errors.Error `json:"error"`
}

func respond(c router.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMessage(c router.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: true, Message: msg})
}

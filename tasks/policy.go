package tasks

import (
	"github.com/goliatone/go-tasks/auth"
)

// Action is a task mutation subject to the ownership policy
type Action string

const (
	ActionUpdate       Action = "task.update"
	ActionDelete       Action = "task.delete"
	ActionUpdateStatus Action = "task.status"
	ActionTag          Action = "task.tag"
)

// Policy decides whether an identity may perform an action on a task.
// It returns nil to allow and a forbidden error to deny.
type Policy interface {
	Authorize(actor *auth.User, action Action, task *Task) error
}

// OwnershipPolicy is the default policy:
//
//	update: creator, assignee or admin
//	delete: creator or admin
//	status: assignee or admin
//	tags:   any authenticated identity
type OwnershipPolicy struct{}

func (OwnershipPolicy) Authorize(actor *auth.User, action Action, task *Task) error {
	if actor == nil {
		return auth.ErrMissingToken
	}

	allowed := false
	switch action {
	case ActionUpdate:
		allowed = isCreator(actor, task) || isAssignee(actor, task) || actor.IsAdmin()
	case ActionDelete:
		allowed = isCreator(actor, task) || actor.IsAdmin()
	case ActionUpdateStatus:
		allowed = isAssignee(actor, task) || actor.IsAdmin()
	case ActionTag:
		allowed = true
	}

	if allowed {
		return nil
	}

	return auth.Forbidden(string(action), map[string]any{
		"task_id": task.ID.String(),
	})
}

func isCreator(actor *auth.User, task *Task) bool {
	return task.CreatedBy == actor.ID
}

func isAssignee(actor *auth.User, task *Task) bool {
	return task.AssignedTo == actor.ID
}

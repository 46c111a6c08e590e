package tasks_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOwnershipPolicy(t *testing.T) {
	creator := &auth.User{ID: uuid.New(), Role: auth.RoleUser}
	assignee := &auth.User{ID: uuid.New(), Role: auth.RoleUser}
	stranger := &auth.User{ID: uuid.New(), Role: auth.RoleUser}
	admin := &auth.User{ID: uuid.New(), Role: auth.RoleAdmin}

	task := &tasks.Task{ID: uuid.New(), CreatedBy: creator.ID, AssignedTo: assignee.ID}

	tests := []struct {
		action  tasks.Action
		allowed map[*auth.User]bool
	}{
		{
			action:  tasks.ActionUpdate,
			allowed: map[*auth.User]bool{creator: true, assignee: true, admin: true, stranger: false},
		},
		{
			action:  tasks.ActionDelete,
			allowed: map[*auth.User]bool{creator: true, assignee: false, admin: true, stranger: false},
		},
		{
			action:  tasks.ActionUpdateStatus,
			allowed: map[*auth.User]bool{creator: false, assignee: true, admin: true, stranger: false},
		},
		{
			action:  tasks.ActionTag,
			allowed: map[*auth.User]bool{creator: true, assignee: true, admin: true, stranger: true},
		},
	}

	names := map[*auth.User]string{creator: "creator", assignee: "assignee", admin: "admin", stranger: "stranger"}
	policy := tasks.OwnershipPolicy{}

	for _, tt := range tests {
		for actor, allowed := range tt.allowed {
			t.Run(string(tt.action)+"/"+names[actor], func(t *testing.T) {
				err := policy.Authorize(actor, tt.action, task)
				if allowed {
					assert.NoError(t, err)
					return
				}
				assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))
				assert.True(t, auth.HasTextCode(err, auth.TextCodeForbidden))
			})
		}
	}
}

func TestOwnershipPolicy_CreatorWhoIsAlsoAssignee(t *testing.T) {
	owner := &auth.User{ID: uuid.New(), Role: auth.RoleUser}
	task := &tasks.Task{ID: uuid.New(), CreatedBy: owner.ID, AssignedTo: owner.ID}

	policy := tasks.OwnershipPolicy{}
	for _, action := range []tasks.Action{tasks.ActionUpdate, tasks.ActionDelete, tasks.ActionUpdateStatus, tasks.ActionTag} {
		assert.NoError(t, policy.Authorize(owner, action, task), action)
	}
}

func TestOwnershipPolicy_NoActor(t *testing.T) {
	task := &tasks.Task{ID: uuid.New()}
	err := tasks.OwnershipPolicy{}.Authorize(nil, tasks.ActionTag, task)
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestOwnershipPolicy_UnknownActionDenied(t *testing.T) {
	actor := &auth.User{ID: uuid.New(), Role: auth.RoleUser}
	task := &tasks.Task{ID: uuid.New(), CreatedBy: actor.ID}
	err := tasks.OwnershipPolicy{}.Authorize(actor, tasks.Action("task.archive"), task)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))
}

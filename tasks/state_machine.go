package tasks

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
)

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	ActorID string
	Task    *Task
	From    Status
	To      Status
	At      time.Time
}

// TransitionHook is executed once a status change has been stored.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// StatusMachine moves tasks between statuses. Every status is reachable
// from every other one, the machine only keeps the completion fields
// consistent with the status.
type StatusMachine struct {
	afterHooks []TransitionHook
}

// StatusMachineOption customizes state machine construction.
type StatusMachineOption func(*StatusMachine)

// WithAfterTransitionHook adds a hook executed after the status update is stored.
func WithAfterTransitionHook(h TransitionHook) StatusMachineOption {
	return func(sm *StatusMachine) {
		if h != nil {
			sm.afterHooks = append(sm.afterHooks, h)
		}
	}
}

// NewStatusMachine returns a status machine
func NewStatusMachine(opts ...StatusMachineOption) *StatusMachine {
	sm := &StatusMachine{}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// CanTransition reports whether target is reachable from the current status
func (sm *StatusMachine) CanTransition(from, to Status) bool {
	return from.IsValid() && to.IsValid()
}

// Transition sets the task status to target at the given time. Entering
// completed sets the completion fields, leaving it clears them. The
// returned context is handed to Committed once the task is stored.
func (sm *StatusMachine) Transition(actorID string, task *Task, target Status, at time.Time) (TransitionContext, error) {
	if !target.IsValid() {
		return TransitionContext{}, ErrInvalidStatus.Clone().WithMetadata(map[string]any{
			"status":  string(target),
			"allowed": AllStatuses(),
		})
	}

	tc := TransitionContext{
		ActorID: actorID,
		Task:    task,
		From:    task.Status,
		To:      target,
		At:      at,
	}

	ApplyStatus(task, target, at)

	return tc, nil
}

// Committed runs the after hooks. Every hook runs, failures are joined.
func (sm *StatusMachine) Committed(ctx context.Context, tc TransitionContext) error {
	var errs []error
	for _, hook := range sm.afterHooks {
		if err := hook(ctx, tc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StatusActivityHook records a status change event in sink
func StatusActivityHook(sink auth.ActivitySink, logger auth.Logger) TransitionHook {
	sink = auth.NormalizeActivitySink(sink)
	return func(ctx context.Context, tc TransitionContext) error {
		if tc.Task == nil {
			return nil
		}
		auth.RecordActivity(ctx, sink, logger, auth.ActivityEvent{
			EventType: auth.ActivityEventTaskStatusChanged,
			ActorID:   tc.ActorID,
			SubjectID: tc.Task.ID.String(),
			Metadata: map[string]any{
				"from": string(tc.From),
				"to":   string(tc.To),
			},
			OccurredAt: tc.At,
		})
		return nil
	}
}

// ApplyStatus sets status and the derived completion fields.
func ApplyStatus(task *Task, status Status, at time.Time) {
	task.Status = status
	if status == StatusCompleted {
		task.IsCompleted = true
		if task.CompletedAt == nil {
			completedAt := at.UTC()
			task.CompletedAt = &completedAt
		}
		return
	}
	task.IsCompleted = false
	task.CompletedAt = nil
}

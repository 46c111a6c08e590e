package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/google/uuid"
)

// CreateTaskMessage is the input of task creation. Shape constraints are
// checked at the HTTP boundary.
type CreateTaskMessage struct {
	Title       string
	Description string
	Priority    Priority
	Category    Category
	DueDate     time.Time
	AssignedTo  uuid.UUID
	Tags        []string
}

// UpdateTaskMessage carries the fields to change, nil fields are left alone.
// Status is not part of it, status changes go through UpdateStatus.
type UpdateTaskMessage struct {
	Title       *string
	Description *string
	Priority    *Priority
	Category    *Category
	DueDate     *time.Time
	AssignedTo  *uuid.UUID
	Tags        *[]string
}

// IsEmpty reports whether the message changes nothing
func (m UpdateTaskMessage) IsEmpty() bool {
	return m.Title == nil && m.Description == nil && m.Priority == nil &&
		m.Category == nil && m.DueDate == nil && m.AssignedTo == nil && m.Tags == nil
}

// Service runs task operations for an authenticated identity
type Service struct {
	store        Store
	policy       Policy
	machine      *StatusMachine
	logger       auth.Logger
	activitySink auth.ActivitySink
	now          func() time.Time
}

// NewService returns a task service using the ownership policy
func NewService(store Store) *Service {
	return &Service{
		store:        store,
		policy:       OwnershipPolicy{},
		machine:      NewStatusMachine(),
		logger:       auth.NewLogger("tasks"),
		activitySink: auth.NormalizeActivitySink(nil),
		now:          time.Now,
	}
}

func (s *Service) WithStatusMachine(machine *StatusMachine) *Service {
	if machine != nil {
		s.machine = machine
	}
	return s
}

func (s *Service) WithLogger(logger auth.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithActivitySink(sink auth.ActivitySink) *Service {
	s.activitySink = auth.NormalizeActivitySink(sink)
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create stores a new pending task owned by the actor
func (s *Service) Create(ctx context.Context, actor *auth.User, msg CreateTaskMessage) (*Task, error) {
	if actor == nil {
		return nil, auth.ErrMissingToken
	}

	now := s.now().UTC()
	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(msg.Title),
		Description: strings.TrimSpace(msg.Description),
		Priority:    msg.Priority,
		Category:    msg.Category,
		DueDate:     msg.DueDate.UTC(),
		Tags:        NormalizeTags(msg.Tags),
		AssignedTo:  msg.AssignedTo,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Category == "" {
		task.Category = CategoryOther
	}
	ApplyStatus(task, StatusPending, now)

	created, err := s.store.Create(ctx, task)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create task")
	}

	s.emit(ctx, auth.ActivityEventTaskCreated, actor, created, nil)
	return created.Normalize(), nil
}

// List returns a filtered page of tasks
func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.Normalize()

	found, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list tasks")
	}

	for _, t := range found {
		t.Normalize()
	}
	if found == nil {
		found = []*Task{}
	}

	return &Page{
		Tasks:      found,
		Pagination: newPagination(total, filter),
	}, nil
}

// Get returns a task by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve task")
	}
	return task.Normalize(), nil
}

// Update changes general task fields. Allowed for the creator, the assignee
// and admins.
func (s *Service) Update(ctx context.Context, actor *auth.User, id uuid.UUID, msg UpdateTaskMessage) (*Task, error) {
	task, err := s.authorize(ctx, actor, ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	if msg.IsEmpty() {
		return task, nil
	}

	fields := []Field{FieldUpdatedAt}
	changed := []string{}
	if msg.Title != nil {
		task.Title = strings.TrimSpace(*msg.Title)
		fields = append(fields, FieldTitle)
		changed = append(changed, string(FieldTitle))
	}
	if msg.Description != nil {
		task.Description = strings.TrimSpace(*msg.Description)
		fields = append(fields, FieldDescription)
		changed = append(changed, string(FieldDescription))
	}
	if msg.Priority != nil {
		task.Priority = *msg.Priority
		fields = append(fields, FieldPriority)
		changed = append(changed, string(FieldPriority))
	}
	if msg.Category != nil {
		task.Category = *msg.Category
		fields = append(fields, FieldCategory)
		changed = append(changed, string(FieldCategory))
	}
	if msg.DueDate != nil {
		task.DueDate = msg.DueDate.UTC()
		fields = append(fields, FieldDueDate)
		changed = append(changed, string(FieldDueDate))
	}
	if msg.AssignedTo != nil {
		task.AssignedTo = *msg.AssignedTo
		fields = append(fields, FieldAssignedTo)
		changed = append(changed, string(FieldAssignedTo))
	}
	if msg.Tags != nil {
		task.Tags = NormalizeTags(*msg.Tags)
		fields = append(fields, FieldTags)
		changed = append(changed, string(FieldTags))
	}
	task.UpdatedAt = s.now().UTC()

	updated, err := s.persist(ctx, task, fields...)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, auth.ActivityEventTaskUpdated, actor, updated, map[string]any{"fields": changed})
	return updated, nil
}

// Delete removes a task. Allowed for the creator and admins.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id uuid.UUID) error {
	task, err := s.authorize(ctx, actor, ActionDelete, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, task.ID); err != nil {
		if errors.IsNotFound(err) {
			return ErrTaskNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete task")
	}

	s.emit(ctx, auth.ActivityEventTaskDeleted, actor, task, nil)
	return nil
}

// UpdateStatus moves the task to a new status. Allowed for the assignee
// and admins.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.User, id uuid.UUID, status Status) (*Task, error) {
	task, err := s.authorize(ctx, actor, ActionUpdateStatus, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tc, err := s.machine.Transition(actor.ID.String(), task, status, now)
	if err != nil {
		return nil, err
	}
	task.UpdatedAt = now

	updated, err := s.persist(ctx, task, FieldStatus, FieldIsCompleted, FieldCompletedAt, FieldUpdatedAt)
	if err != nil {
		return nil, err
	}

	tc.Task = updated
	if err := s.machine.Committed(ctx, tc); err != nil {
		s.logger.Error("status transition hook failed", "task_id", updated.ID.String(), "error", err)
	}

	return updated, nil
}

// AddTag adds a tag to the task, adding an existing tag is a no-op
func (s *Service) AddTag(ctx context.Context, actor *auth.User, id uuid.UUID, tag string) (*Task, error) {
	task, err := s.authorize(ctx, actor, ActionTag, id)
	if err != nil {
		return nil, err
	}

	tag = strings.TrimSpace(tag)
	if task.HasTag(tag) {
		return task, nil
	}

	task.Tags = append(task.Tags, tag)
	task.UpdatedAt = s.now().UTC()

	updated, err := s.persist(ctx, task, FieldTags, FieldUpdatedAt)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, auth.ActivityEventTaskTagAdded, actor, updated, map[string]any{"tag": tag})
	return updated, nil
}

// RemoveTag removes a tag from the task if present
func (s *Service) RemoveTag(ctx context.Context, actor *auth.User, id uuid.UUID, tag string) (*Task, error) {
	task, err := s.authorize(ctx, actor, ActionTag, id)
	if err != nil {
		return nil, err
	}

	tag = strings.TrimSpace(tag)
	if !task.HasTag(tag) {
		return task, nil
	}

	kept := make([]string, 0, len(task.Tags))
	for _, t := range task.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	task.Tags = kept
	task.UpdatedAt = s.now().UTC()

	updated, err := s.persist(ctx, task, FieldTags, FieldUpdatedAt)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, auth.ActivityEventTaskTagRemoved, actor, updated, map[string]any{"tag": tag})
	return updated, nil
}

// authorize loads the task, reporting not found before any permission
// check, then evaluates the policy.
func (s *Service) authorize(ctx context.Context, actor *auth.User, action Action, id uuid.UUID) (*Task, error) {
	if actor == nil {
		return nil, auth.ErrMissingToken
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Authorize(actor, action, task); err != nil {
		s.logger.Debug("task action denied",
			"action", string(action),
			"task_id", task.ID.String(),
			"actor_id", actor.ID.String(),
		)
		return nil, err
	}

	return task, nil
}

func (s *Service) persist(ctx context.Context, task *Task, fields ...Field) (*Task, error) {
	updated, err := s.store.Update(ctx, task, fields...)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update task")
	}
	return updated.Normalize(), nil
}

func (s *Service) emit(ctx context.Context, eventType auth.ActivityEventType, actor *auth.User, task *Task, meta map[string]any) {
	event := auth.ActivityEvent{
		EventType:  eventType,
		SubjectID:  task.ID.String(),
		Metadata:   meta,
		OccurredAt: s.now().UTC(),
	}
	if actor != nil {
		event.ActorID = actor.ID.String()
	}
	auth.RecordActivity(ctx, s.activitySink, s.logger, event)
}

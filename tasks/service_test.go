package tasks_test

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = goerrors.New("record not found", goerrors.CategoryNotFound)

// memStore is a map backed tasks.Store
type memStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]tasks.Task
	updates [][]tasks.Field
}

func newMemStore() *memStore {
	return &memStore{tasks: map[uuid.UUID]tasks.Task{}}
}

func (m *memStore) Create(_ context.Context, task *tasks.Task) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return task, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, errNotFound
	}
	t.Tags = append([]string{}, t.Tags...)
	return &t, nil
}

func (m *memStore) List(_ context.Context, f tasks.ListFilter) ([]*tasks.Task, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*tasks.Task
	for _, t := range m.tasks {
		t := t
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Description), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memStore) Update(_ context.Context, task *tasks.Task, fields ...tasks.Field) (*tasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return nil, errNotFound
	}
	m.tasks[task.ID] = *task
	m.updates = append(m.updates, fields)
	return task, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return errNotFound
	}
	delete(m.tasks, id)
	return nil
}

type serviceFixture struct {
	store    *memStore
	svc      *tasks.Service
	creator  *auth.User
	assignee *auth.User
	admin    *auth.User
	stranger *auth.User
	now      time.Time
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		store:    newMemStore(),
		creator:  &auth.User{ID: uuid.New(), Role: auth.RoleUser, IsActive: true},
		assignee: &auth.User{ID: uuid.New(), Role: auth.RoleUser, IsActive: true},
		admin:    &auth.User{ID: uuid.New(), Role: auth.RoleAdmin, IsActive: true},
		stranger: &auth.User{ID: uuid.New(), Role: auth.RoleUser, IsActive: true},
		now:      time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = tasks.NewService(f.store).WithClock(func() time.Time { return f.now })
	return f
}

func (f *serviceFixture) createTask(t *testing.T) *tasks.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), f.creator, tasks.CreateTaskMessage{
		Title:       "Ship report",
		Description: "Quarterly report for finance",
		DueDate:     f.now.AddDate(0, 0, 1),
		AssignedTo:  f.assignee.ID,
		Tags:        []string{"finance", "q3", "finance"},
	})
	require.NoError(t, err)
	return task
}

func TestService_CreateDefaults(t *testing.T) {
	f := newServiceFixture()
	task := f.createTask(t)

	assert.Equal(t, f.creator.ID, task.CreatedBy)
	assert.Equal(t, f.assignee.ID, task.AssignedTo)
	assert.Equal(t, tasks.StatusPending, task.Status)
	assert.Equal(t, tasks.PriorityMedium, task.Priority)
	assert.Equal(t, tasks.CategoryOther, task.Category)
	assert.Equal(t, []string{"finance", "q3"}, task.Tags)
	assert.False(t, task.IsCompleted)
	assert.Nil(t, task.CompletedAt)
}

func TestService_DeleteOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("assignee and stranger are forbidden", func(t *testing.T) {
		f := newServiceFixture()
		task := f.createTask(t)

		for _, actor := range []*auth.User{f.assignee, f.stranger} {
			err := f.svc.Delete(ctx, actor, task.ID)
			assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))
		}

		_, err := f.svc.Get(ctx, task.ID)
		assert.NoError(t, err)
	})

	t.Run("creator can delete", func(t *testing.T) {
		f := newServiceFixture()
		task := f.createTask(t)

		require.NoError(t, f.svc.Delete(ctx, f.creator, task.ID))
		_, err := f.svc.Get(ctx, task.ID)
		assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
	})

	t.Run("admin can delete", func(t *testing.T) {
		f := newServiceFixture()
		task := f.createTask(t)
		assert.NoError(t, f.svc.Delete(ctx, f.admin, task.ID))
	})

	t.Run("missing task is not found before permission check", func(t *testing.T) {
		f := newServiceFixture()
		err := f.svc.Delete(ctx, f.stranger, uuid.New())
		assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	task := f.createTask(t)

	_, err := f.svc.UpdateStatus(ctx, f.creator, task.ID, tasks.StatusCompleted)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz), "creator who is not the assignee may not change status")

	done, err := f.svc.UpdateStatus(ctx, f.assignee, task.ID, tasks.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, done.Status)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, f.now, *done.CompletedAt)

	stored, err := f.svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)

	reopened, err := f.svc.UpdateStatus(ctx, f.admin, task.ID, tasks.StatusPending)
	require.NoError(t, err)
	assert.False(t, reopened.IsCompleted)
	assert.Nil(t, reopened.CompletedAt)

	last := f.store.updates[len(f.store.updates)-1]
	assert.ElementsMatch(t, []tasks.Field{
		tasks.FieldStatus, tasks.FieldIsCompleted, tasks.FieldCompletedAt, tasks.FieldUpdatedAt,
	}, last)
}

func TestService_UpdateStatusRunsCommittedHooks(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	sink := &eventSink{}
	f.svc.WithStatusMachine(tasks.NewStatusMachine(
		tasks.WithAfterTransitionHook(tasks.StatusActivityHook(sink, nil)),
	))
	task := f.createTask(t)

	_, err := f.svc.UpdateStatus(ctx, f.stranger, task.ID, tasks.StatusCompleted)
	require.Error(t, err)
	assert.Empty(t, sink.events)

	_, err = f.svc.UpdateStatus(ctx, f.assignee, task.ID, tasks.StatusInProgress)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, auth.ActivityEventTaskStatusChanged, sink.events[0].EventType)
	assert.Equal(t, f.assignee.ID.String(), sink.events[0].ActorID)
	assert.Equal(t, map[string]any{"from": "pending", "to": "in-progress"}, sink.events[0].Metadata)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	task := f.createTask(t)

	title := "Ship the final report"
	high := tasks.PriorityHigh

	for _, actor := range []*auth.User{f.creator, f.assignee, f.admin} {
		updated, err := f.svc.Update(ctx, actor, task.ID, tasks.UpdateTaskMessage{Title: &title, Priority: &high})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.Equal(t, tasks.PriorityHigh, updated.Priority)
		assert.Equal(t, tasks.StatusPending, updated.Status)
	}

	_, err := f.svc.Update(ctx, f.stranger, task.ID, tasks.UpdateTaskMessage{Title: &title})
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))

	_, err = f.svc.Update(ctx, f.creator, uuid.New(), tasks.UpdateTaskMessage{Title: &title})
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestService_Tags(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	task := f.createTask(t)

	tagged, err := f.svc.AddTag(ctx, f.stranger, task.ID, "urgent")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "q3", "urgent"}, tagged.Tags)

	writes := len(f.store.updates)
	again, err := f.svc.AddTag(ctx, f.creator, task.ID, " urgent ")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "q3", "urgent"}, again.Tags)
	assert.Len(t, f.store.updates, writes, "duplicate tag does not write")

	removed, err := f.svc.RemoveTag(ctx, f.assignee, task.ID, "q3")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "urgent"}, removed.Tags)

	untouched, err := f.svc.RemoveTag(ctx, f.assignee, task.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "urgent"}, untouched.Tags)

	_, err = f.svc.AddTag(ctx, f.assignee, uuid.New(), "urgent")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestService_ListPagination(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	for i := 0; i < 12; i++ {
		f.now = f.now.Add(time.Minute)
		f.createTask(t)
	}

	page, err := f.svc.List(ctx, tasks.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 10)
	assert.Equal(t, tasks.Pagination{Total: 12, Page: 1, Limit: 10, Pages: 2}, page.Pagination)
	assert.True(t, page.Tasks[0].CreatedAt.After(page.Tasks[1].CreatedAt))

	second, err := f.svc.List(ctx, tasks.ListFilter{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, second.Tasks, 2)

	empty, err := f.svc.List(ctx, tasks.ListFilter{Status: tasks.StatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, empty.Tasks)
	assert.Equal(t, 0, empty.Pagination.Pages)
}

func TestListFilter(t *testing.T) {
	f := tasks.ListFilter{Page: 0, Limit: 500}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, tasks.MaxLimit, f.Limit)
	assert.Equal(t, 20, tasks.ListFilter{Page: 3, Limit: 10}.Offset())

	huge := tasks.ListFilter{Page: math.MaxInt, Limit: tasks.MaxLimit}
	assert.Equal(t, tasks.MaxPage, huge.Normalize().Page)
	assert.Positive(t, huge.Offset())

	due := time.Date(2026, 6, 2, 15, 4, 5, 0, time.UTC)
	start, end, ok := tasks.ListFilter{DueDate: &due}.DueRange()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), end)
}

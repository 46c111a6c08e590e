package repository

import (
	"context"
	"strings"
	"time"

	repo "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TasksRepository persists tasks with bun
type TasksRepository struct {
	db      bun.IDB
	records repo.Repository[*tasks.Task]
}

var _ tasks.Store = (*TasksRepository)(nil)

func NewTasksRepository(db bun.IDB) *TasksRepository {
	return &TasksRepository{
		db: db,
		records: repo.NewRepository(db, repo.ModelHandlers[*tasks.Task]{
			NewRecord: func() *tasks.Task { return new(tasks.Task) },
			GetID: func(t *tasks.Task) uuid.UUID {
				if t == nil {
					return uuid.Nil
				}
				return t.ID
			},
			SetID: func(t *tasks.Task, id uuid.UUID) {
				t.ID = id
			},
			GetIdentifier: func() string {
				return "id"
			},
		}),
	}
}

// withUsers loads the name and email of the creator and the assignee
func withUsers() []repo.SelectCriteria {
	return []repo.SelectCriteria{
		repo.Relation("Creator"),
		repo.Relation("Assignee"),
	}
}

func (r *TasksRepository) Create(ctx context.Context, task *tasks.Task) (*tasks.Task, error) {
	task.Normalize()

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	created, err := r.records.Create(ctx, task)
	if err != nil {
		return nil, mapError(err, "tasks.create")
	}
	return created.Normalize(), nil
}

func (r *TasksRepository) GetByID(ctx context.Context, id uuid.UUID) (*tasks.Task, error) {
	task, err := r.records.GetByID(ctx, id.String(), withUsers()...)
	if err != nil {
		return nil, mapError(err, "tasks.get_by_id")
	}
	return task.Normalize(), nil
}

// List returns one page of tasks, newest first, and the total number
// of matching tasks
func (r *TasksRepository) List(ctx context.Context, filter tasks.ListFilter) ([]*tasks.Task, int, error) {
	filter = filter.Normalize()

	criteria := append(withUsers(),
		repo.SelectRawProcessor(listFilter(filter)),
		repo.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.created_at DESC")
		}),
		repo.Paginate(filter.Limit, filter.Offset()),
	)

	records, total, err := r.records.List(ctx, criteria...)
	if err != nil {
		return nil, 0, mapError(err, "tasks.list")
	}

	for _, t := range records {
		t.Normalize()
	}
	return records, total, nil
}

func listFilter(filter tasks.ListFilter) func(q *bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.Status != "" {
			q = q.Where("?TableAlias.status = ?", filter.Status)
		}
		if filter.Priority != "" {
			q = q.Where("?TableAlias.priority = ?", filter.Priority)
		}
		if filter.Category != "" {
			q = q.Where("?TableAlias.category = ?", filter.Category)
		}
		if filter.AssignedTo != nil {
			q = q.Where("?TableAlias.assigned_to = ?", *filter.AssignedTo)
		}
		if start, end, ok := filter.DueRange(); ok {
			q = q.Where("?TableAlias.due_date >= ?", start).
				Where("?TableAlias.due_date < ?", end)
		}
		if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("INSTR(LOWER(?TableAlias.title), ?) > 0", term).
					WhereOr("INSTR(LOWER(?TableAlias.description), ?) > 0", term)
			})
		}
		return q
	}
}

// Update writes the given columns, or the whole row when none are
// given, and returns the stored task. The generic Update omits zero
// values so this stays on the query builder.
func (r *TasksRepository) Update(ctx context.Context, task *tasks.Task, fields ...tasks.Field) (*tasks.Task, error) {
	task.Normalize()

	q := r.db.NewUpdate().Model(task).WherePK()
	if len(fields) > 0 {
		columns := make([]string, 0, len(fields))
		for _, f := range fields {
			columns = append(columns, string(f))
		}
		q = q.Column(columns...)
	} else {
		q = q.ExcludeColumn("id", "created_by", "created_at")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, mapError(err, "tasks.update")
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, task.ID)
}

func (r *TasksRepository) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := r.records.GetByID(ctx, id.String())
	if err != nil {
		return mapError(err, "tasks.delete")
	}
	if err := r.records.Delete(ctx, task); err != nil {
		return mapError(err, "tasks.delete")
	}
	return nil
}

package mongodb

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

type userDocument struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash"`
	Role         string     `bson:"role"`
	IsActive     bool       `bson:"isActive"`
	LastLogin    *time.Time `bson:"lastLogin,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func toUserDocument(u *auth.User) userDocument {
	return userDocument{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) toUser() (*auth.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "stored user has a malformed id")
	}
	return &auth.User{
		ID:           id,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		IsActive:     d.IsActive,
		LastLogin:    d.LastLogin,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

type userSummaryDocument struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

// referencedUserIDs returns the distinct creator and assignee ids
func referencedUserIDs(found []*tasks.Task) []string {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(found)*2)
	for _, t := range found {
		for _, id := range []uuid.UUID{t.CreatedBy, t.AssignedTo} {
			if id == uuid.Nil {
				continue
			}
			key := id.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			ids = append(ids, key)
		}
	}
	return ids
}

// attachUsers points each task at the summaries of its users. Users
// missing from docs leave the summary nil.
func attachUsers(found []*tasks.Task, docs []userSummaryDocument) {
	byID := make(map[uuid.UUID]*tasks.UserSummary, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			continue
		}
		byID[id] = &tasks.UserSummary{ID: id, Name: d.Name, Email: d.Email}
	}
	for _, t := range found {
		t.Creator = byID[t.CreatedBy]
		t.Assignee = byID[t.AssignedTo]
	}
}

type taskDocument struct {
	ID          string     `bson:"_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Status      string     `bson:"status"`
	Priority    string     `bson:"priority"`
	Category    string     `bson:"category"`
	DueDate     time.Time  `bson:"dueDate"`
	Tags        []string   `bson:"tags"`
	AssignedTo  string     `bson:"assignedTo"`
	CreatedBy   string     `bson:"createdBy"`
	IsCompleted bool       `bson:"isCompleted"`
	CompletedAt *time.Time `bson:"completedAt"`
	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}

func toTaskDocument(t *tasks.Task) taskDocument {
	t.Normalize()
	return taskDocument{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueDate:     t.DueDate,
		Tags:        t.Tags,
		AssignedTo:  t.AssignedTo.String(),
		CreatedBy:   t.CreatedBy.String(),
		IsCompleted: t.IsCompleted,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDocument) toTask() (*tasks.Task, error) {
	ids := make([]uuid.UUID, 3)
	for i, raw := range []string{d.ID, d.AssignedTo, d.CreatedBy} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "stored task has a malformed id")
		}
		ids[i] = id
	}

	task := &tasks.Task{
		ID:          ids[0],
		Title:       d.Title,
		Description: d.Description,
		Status:      tasks.Status(d.Status),
		Priority:    tasks.Priority(d.Priority),
		Category:    tasks.Category(d.Category),
		DueDate:     d.DueDate,
		Tags:        d.Tags,
		AssignedTo:  ids[1],
		CreatedBy:   ids[2],
		IsCompleted: d.IsCompleted,
		CompletedAt: d.CompletedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	return task.Normalize(), nil
}

// taskKeys maps persisted task fields to document keys
var taskKeys = map[tasks.Field]string{
	tasks.FieldTitle:       "title",
	tasks.FieldDescription: "description",
	tasks.FieldStatus:      "status",
	tasks.FieldPriority:    "priority",
	tasks.FieldCategory:    "category",
	tasks.FieldDueDate:     "dueDate",
	tasks.FieldTags:        "tags",
	tasks.FieldAssignedTo:  "assignedTo",
	tasks.FieldIsCompleted: "isCompleted",
	tasks.FieldCompletedAt: "completedAt",
	tasks.FieldUpdatedAt:   "updatedAt",
}

// taskUpdate builds the $set document for the given fields. No fields
// means every mutable field.
func taskUpdate(t *tasks.Task, fields ...tasks.Field) (bson.M, error) {
	doc := toTaskDocument(t)
	values := map[string]any{
		"title":       doc.Title,
		"description": doc.Description,
		"status":      doc.Status,
		"priority":    doc.Priority,
		"category":    doc.Category,
		"dueDate":     doc.DueDate,
		"tags":        doc.Tags,
		"assignedTo":  doc.AssignedTo,
		"isCompleted": doc.IsCompleted,
		"completedAt": doc.CompletedAt,
		"updatedAt":   doc.UpdatedAt,
	}

	set := bson.M{}
	if len(fields) == 0 {
		for k, v := range values {
			set[k] = v
		}
		return bson.M{"$set": set}, nil
	}

	for _, f := range fields {
		key, ok := taskKeys[f]
		if !ok {
			return nil, errors.New("unknown task field "+string(f), errors.CategoryInternal)
		}
		set[key] = values[key]
	}
	return bson.M{"$set": set}, nil
}

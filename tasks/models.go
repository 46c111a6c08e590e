package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is the task lifecycle status
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Category of a task
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

const (
	MaxTagsOnCreate = 5
	MinTagLength    = 2
	MaxTagLength    = 20
)

// Task is the task model
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Title         string     `bun:"title,notnull" json:"title"`
	Description   string     `bun:"description,notnull" json:"description"`
	Status        Status     `bun:"status,notnull" json:"status"`
	Priority      Priority   `bun:"priority,notnull" json:"priority"`
	Category      Category   `bun:"category,notnull" json:"category"`
	DueDate       time.Time  `bun:"due_date,notnull" json:"dueDate"`
	Tags          []string   `bun:"tags,type:json" json:"tags"`
	AssignedTo    uuid.UUID  `bun:"assigned_to,type:uuid,notnull" json:"assignedTo"`
	CreatedBy     uuid.UUID  `bun:"created_by,type:uuid,notnull" json:"createdBy"`
	IsCompleted   bool       `bun:"is_completed,notnull" json:"isCompleted"`
	CompletedAt   *time.Time `bun:"completed_at,nullzero" json:"completedAt,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	// Creator and Assignee are loaded on reads, nil otherwise
	Creator  *UserSummary `bun:"rel:belongs-to,join:created_by=id" json:"creator,omitempty"`
	Assignee *UserSummary `bun:"rel:belongs-to,join:assigned_to=id" json:"assignee,omitempty"`
}

// UserSummary is the read only view of the users a task points at
type UserSummary struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name" json:"name"`
	Email         string    `bun:"email" json:"email"`
}

// Field names a persisted task attribute for field level updates
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldCategory    Field = "category"
	FieldDueDate     Field = "due_date"
	FieldTags        Field = "tags"
	FieldAssignedTo  Field = "assigned_to"
	FieldIsCompleted Field = "is_completed"
	FieldCompletedAt Field = "completed_at"
	FieldUpdatedAt   Field = "updated_at"
)

func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
}

func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func AllCategories() []Category {
	return []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryOther}
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

func (p Priority) IsValid() bool {
	for _, v := range AllPriorities() {
		if v == p {
			return true
		}
	}
	return false
}

func (c Category) IsValid() bool {
	for _, v := range AllCategories() {
		if v == c {
			return true
		}
	}
	return false
}

// HasTag reports whether the task carries the tag
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, drops empties and removes duplicates keeping the
// first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Normalize replaces a nil tag list with an empty one
func (t *Task) Normalize() *Task {
	if t == nil {
		return nil
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t
}

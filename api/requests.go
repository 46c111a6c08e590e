package api

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/tasks"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var (
	upperCase = regexp.MustCompile(`[A-Z]`)
	lowerCase = regexp.MustCompile(`[a-z]`)
	digit     = regexp.MustCompile(`[0-9]`)
)

// Validatable is implemented by every request payload
type Validatable interface {
	Validate() error
}

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = auth.NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(2, 50)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password,
			validation.Required,
			validation.RuneLength(6, 72),
			validation.Length(0, auth.MaxPasswordBytes).Error("the length must be no more than 72 bytes"),
			validation.Match(upperCase).Error("must contain an uppercase letter"),
			validation.Match(lowerCase).Error("must contain a lowercase letter"),
			validation.Match(digit).Error("must contain a number"),
		),
	)
}

func (r RegisterRequest) Message() auth.RegisterUserMessage {
	return auth.RegisterUserMessage{
		Name:     strings.TrimSpace(r.Name),
		Email:    auth.NormalizeEmail(r.Email),
		Password: r.Password,
	}
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	r.Email = auth.NormalizeEmail(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// ActivationRequest payload
type ActivationRequest struct {
	IsActive *bool `json:"isActive"`
}

func (r ActivationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IsActive, validation.NotNil),
	)
}

// CreateTaskRequest payload. Status is never client supplied at creation.
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	DueDate     string   `json:"dueDate"`
	AssignedTo  string   `json:"assignedTo"`
	Tags        []string `json:"tags"`

	now func() time.Time
}

func (r CreateTaskRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(3, 100)),
		validation.Field(&r.Description, validation.Required, validation.RuneLength(10, 1000)),
		validation.Field(&r.Priority, priorityRule),
		validation.Field(&r.Category, categoryRule),
		validation.Field(&r.DueDate, validation.Required, dueDateRule(clock(r.now))),
		validation.Field(&r.AssignedTo, validation.Required, is.UUID),
		validation.Field(&r.Tags, tagsRules...),
	)
}

// Message converts a validated request
func (r CreateTaskRequest) Message() tasks.CreateTaskMessage {
	due, _ := parseDate(r.DueDate)
	assignee, _ := uuid.Parse(strings.TrimSpace(r.AssignedTo))
	return tasks.CreateTaskMessage{
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Priority:    tasks.Priority(r.Priority),
		Category:    tasks.Category(r.Category),
		DueDate:     due,
		AssignedTo:  assignee,
		Tags:        r.Tags,
	}
}

// UpdateTaskRequest payload. Only present fields are changed.
type UpdateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Category    *string   `json:"category"`
	DueDate     *string   `json:"dueDate"`
	AssignedTo  *string   `json:"assignedTo"`
	Tags        *[]string `json:"tags"`
	// Status is rejected, it changes through the status endpoint
	Status *string `json:"status"`

	now func() time.Time
}

func (r UpdateTaskRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.By(trimmedLength(3, 100))),
		validation.Field(&r.Description, validation.NilOrNotEmpty, validation.By(trimmedLength(10, 1000))),
		validation.Field(&r.Priority, validation.NilOrNotEmpty, priorityRule),
		validation.Field(&r.Category, validation.NilOrNotEmpty, categoryRule),
		validation.Field(&r.DueDate, validation.NilOrNotEmpty, dueDateRule(clock(r.now))),
		validation.Field(&r.AssignedTo, validation.NilOrNotEmpty, is.UUID),
		validation.Field(&r.Tags, validation.By(optionalTags)),
		validation.Field(&r.Status, validation.Nil.Error("use PATCH /tasks/:id/status to change the status")),
	)
	if err != nil {
		return err
	}

	if r.Message().IsEmpty() {
		return validation.Errors{
			"body": validation.NewError("validation_update_empty", "at least one field must be provided"),
		}
	}
	return nil
}

// Message converts a validated request
func (r UpdateTaskRequest) Message() tasks.UpdateTaskMessage {
	var msg tasks.UpdateTaskMessage

	if r.Title != nil {
		v := strings.TrimSpace(*r.Title)
		msg.Title = &v
	}
	if r.Description != nil {
		v := strings.TrimSpace(*r.Description)
		msg.Description = &v
	}
	if r.Priority != nil {
		v := tasks.Priority(*r.Priority)
		msg.Priority = &v
	}
	if r.Category != nil {
		v := tasks.Category(*r.Category)
		msg.Category = &v
	}
	if r.DueDate != nil {
		if v, err := parseDate(*r.DueDate); err == nil {
			msg.DueDate = &v
		}
	}
	if r.AssignedTo != nil {
		if v, err := uuid.Parse(strings.TrimSpace(*r.AssignedTo)); err == nil {
			msg.AssignedTo = &v
		}
	}
	if r.Tags != nil {
		v := append([]string{}, (*r.Tags)...)
		msg.Tags = &v
	}

	return msg
}

// StatusRequest payload
type StatusRequest struct {
	Status string `json:"status"`
}

func (r StatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, statusRule),
	)
}

// TagRequest payload
type TagRequest struct {
	Tag string `json:"tag"`
}

func (r TagRequest) Validate() error {
	r.Tag = strings.TrimSpace(r.Tag)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tag, validation.Required, validation.RuneLength(tasks.MinTagLength, tasks.MaxTagLength)),
	)
}

// ListTasksQuery holds the GET /tasks query string
type ListTasksQuery struct {
	Status     string `query:"status"`
	Priority   string `query:"priority"`
	Category   string `query:"category"`
	AssignedTo string `query:"assignedTo"`
	DueDate    string `query:"dueDate"`
	Search     string `query:"search"`
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
}

// BindListTasksQuery reads the listing query string. Page and limit
// must be integers when present.
func BindListTasksQuery(c router.Context) (*ListTasksQuery, error) {
	q := &ListTasksQuery{
		Status:     c.Query("status", ""),
		Priority:   c.Query("priority", ""),
		Category:   c.Query("category", ""),
		AssignedTo: c.Query("assignedTo", ""),
		DueDate:    c.Query("dueDate", ""),
		Search:     c.Query("search", ""),
	}

	failed := map[string]string{}
	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := strings.TrimSpace(c.Query(name, ""))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			failed[name] = "must be an integer"
			continue
		}
		*dst = n
	}
	if len(failed) > 0 {
		return nil, errors.NewValidationFromMap("Invalid query string", failed).
			WithCode(errors.CodeBadRequest).
			WithTextCode(auth.TextCodeValidationFailed)
	}
	return q, nil
}

func (q ListTasksQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Status, statusRule),
		validation.Field(&q.Priority, priorityRule),
		validation.Field(&q.Category, categoryRule),
		validation.Field(&q.AssignedTo, is.UUID),
		validation.Field(&q.DueDate, validation.Date(dateLayout)),
		validation.Field(&q.Search, validation.RuneLength(0, 100)),
		validation.Field(&q.Page, validation.Min(0), validation.Max(tasks.MaxPage)),
		validation.Field(&q.Limit, validation.Min(0)),
	)
}

// Filter converts a validated query. Paging bounds are applied by the service.
func (q ListTasksQuery) Filter() tasks.ListFilter {
	f := tasks.ListFilter{
		Status:   tasks.Status(q.Status),
		Priority: tasks.Priority(q.Priority),
		Category: tasks.Category(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if id, err := uuid.Parse(q.AssignedTo); err == nil {
		f.AssignedTo = &id
	}
	if due, err := time.ParseInLocation(dateLayout, q.DueDate, time.UTC); err == nil {
		f.DueDate = &due
	}
	return f
}

var (
	statusRule   = validation.In(stringsOf(tasks.AllStatuses())...)
	priorityRule = validation.In(stringsOf(tasks.AllPriorities())...)
	categoryRule = validation.In(stringsOf(tasks.AllCategories())...)

	tagsRules = []validation.Rule{
		validation.Length(0, tasks.MaxTagsOnCreate),
		validation.Each(
			validation.Required,
			validation.By(trimmedLength(tasks.MinTagLength, tasks.MaxTagLength)),
		),
	}
)

func optionalTags(value any) error {
	tags, ok := value.(*[]string)
	if !ok || tags == nil {
		return nil
	}
	return validation.Validate(*tags, tagsRules...)
}

func stringsOf[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func trimmedLength(min, max int) validation.RuleFunc {
	return func(value any) error {
		value, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		s, err := validation.EnsureString(value)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return validation.ErrRequired
		}
		return validation.Validate(s, validation.RuneLength(min, max))
	}
}

// dueDateRule accepts RFC 3339 or YYYY-MM-DD dates that are not before
// the start of the current UTC day
func dueDateRule(now func() time.Time) validation.Rule {
	return validation.By(func(value any) error {
		value, isNil := validation.Indirect(value)
		if isNil || validation.IsEmpty(value) {
			return nil
		}
		s, err := validation.EnsureString(value)
		if err != nil {
			return err
		}
		due, err := parseDate(s)
		if err != nil {
			return validation.NewError("validation_date_format", "must be a valid date (YYYY-MM-DD or RFC 3339)")
		}
		today := now().UTC().Truncate(24 * time.Hour)
		if due.Before(today) {
			return validation.NewError("validation_date_past", "cannot be in the past")
		}
		return nil
	})
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

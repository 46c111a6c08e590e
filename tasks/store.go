package tasks

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit well inside int range
	MaxPage = 1_000_000
)

// Store is the task storage collaborator. Implementations report a
// missing task with a not found category error.
type Store interface {
	Create(ctx context.Context, task *Task) (*Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context, filter ListFilter) ([]*Task, int, error)
	// Update persists the given fields, or every field when none are given.
	Update(ctx context.Context, task *Task, fields ...Field) (*Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListFilter holds the query options of a task listing. Zero values
// mean "no filter".
type ListFilter struct {
	Status     Status
	Priority   Priority
	Category   Category
	AssignedTo *uuid.UUID
	// DueDate matches every task due on the same UTC day
	DueDate *time.Time
	// Search is a case insensitive substring match on title or description
	Search string
	Page   int
	Limit  int
}

// Normalize applies the paging defaults and bounds
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	return f
}

// Offset is the number of records skipped for the current page
func (f ListFilter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.Limit
}

// DueRange returns the half open [start, end) UTC day of DueDate
func (f ListFilter) DueRange() (time.Time, time.Time, bool) {
	if f.DueDate == nil {
		return time.Time{}, time.Time{}, false
	}
	d := f.DueDate.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1), true
}

// Pagination describes a page of results
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Page is a listing result
type Page struct {
	Tasks      []*Task    `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

func newPagination(total int, f ListFilter) Pagination {
	return Pagination{
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
		Pages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}
}

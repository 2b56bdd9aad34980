package core

import (
	"slices"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// PRIORITY - shared by tasks and social events
// -----------------------------------------------------------------------------

// Priority is the urgency of a task or social event
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities low < medium < high < urgent.
// Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is one of the four known priorities
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// -----------------------------------------------------------------------------
// TASK - something the user needs to do
// -----------------------------------------------------------------------------

// TaskStatus represents where a task is in its lifecycle
type TaskStatus string

const (
	TaskDraft     TaskStatus = "draft"
	TaskActive    TaskStatus = "active"
	TaskPending   TaskStatus = "pending" // Blocked or waiting on someone else
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskDraft, TaskActive, TaskPending, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

// TaskCategory groups tasks for list views
type TaskCategory string

const (
	CategorySocial   TaskCategory = "social"
	CategoryShopping TaskCategory = "shopping"
	CategoryWork     TaskCategory = "work"
	CategoryPersonal TaskCategory = "personal"
	CategoryOther    TaskCategory = "other"
)

// Valid reports whether c is a known category
func (c TaskCategory) Valid() bool {
	switch c {
	case CategorySocial, CategoryShopping, CategoryWork, CategoryPersonal, CategoryOther:
		return true
	}
	return false
}

// Task is a tracked to-do derived from a capture or added by hand
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    Priority     `json:"priority"`
	Category    TaskCategory `json:"category"`
	Tags        []string     `json:"tags,omitempty"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a copy that shares no memory with t
func (t Task) Clone() Task {
	t.Tags = slices.Clone(t.Tags)
	t.Deadline = clonePtr(t.Deadline)
	return t
}

// NewTask is the create-input for a task. Only Title is required.
type NewTask struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    Priority     `json:"priority,omitempty"`
	Category    TaskCategory `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
}

// TaskUpdate is the update-input for a task. Nil fields are left untouched.
type TaskUpdate struct {
	Title         *string       `json:"title,omitempty"`
	Description   *string       `json:"description,omitempty"`
	Status        *TaskStatus   `json:"status,omitempty"`
	Priority      *Priority     `json:"priority,omitempty"`
	Category      *TaskCategory `json:"category,omitempty"`
	Tags          *[]string     `json:"tags,omitempty"`
	Deadline      *time.Time    `json:"deadline,omitempty"`
	ClearDeadline bool          `json:"clear_deadline,omitempty"`
}

// ApplyTaskDefaults turns a create-input into a full record draft.
// Status defaults to draft, priority to medium and category to other.
func ApplyTaskDefaults(in NewTask, id string, now time.Time) Task {
	t := Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Category:    in.Category,
		Tags:        slices.Clone(in.Tags),
		Deadline:    clonePtr(in.Deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = TaskDraft
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Category == "" {
		t.Category = CategoryOther
	}
	return t
}

// ValidateTask checks required fields and enum values
func ValidateTask(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "is required")
	}
	if !t.Status.Valid() {
		return invalid("status", "unknown value "+string(t.Status))
	}
	if !t.Priority.Valid() {
		return invalid("priority", "unknown value "+string(t.Priority))
	}
	if !t.Category.Valid() {
		return invalid("category", "unknown value "+string(t.Category))
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return invalid("updated_at", "precedes created_at")
	}
	return nil
}

// MergeTask applies the provided fields of u onto cur
func MergeTask(cur Task, u TaskUpdate, now time.Time) Task {
	next := cur.Clone()
	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Priority != nil {
		next.Priority = *u.Priority
	}
	if u.Category != nil {
		next.Category = *u.Category
	}
	if u.Tags != nil {
		next.Tags = slices.Clone(*u.Tags)
	}
	if u.ClearDeadline {
		next.Deadline = nil
	} else if u.Deadline != nil {
		next.Deadline = clonePtr(u.Deadline)
	}
	next.UpdatedAt = now
	return next
}

// Package task defines the task record exchanged with the task backend.
package task

import "strings"

// Status is a task's workflow state. Values other than the known ones are
// passed through verbatim.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Priority bounds. Lower numbers are more urgent.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// Task is a to-do item with scheduling metadata.
// ID is assigned by the backend; zero means "not yet created".
type Task struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
	DueDate     string `json:"due_date"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// WithDefaults fills in the priority and status a new task gets when the
// caller leaves them unset.
func (t Task) WithDefaults() Task {
	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	return t
}

// Payload returns the copy of t sent to the backend on create and update:
// server-owned fields are cleared.
func (t Task) Payload() Task {
	t.ID = 0
	t.CreatedAt = ""
	t.UpdatedAt = ""
	return t
}

// HasTitle reports whether the title contains anything but whitespace.
func (t Task) HasTitle() bool {
	return strings.TrimSpace(t.Title) != ""
}

// Package taskdb persists tasks for the task backend.
//
// Three Repository implementations are provided: SQLite (the default),
// Neo4j, and an in-memory one used by tests and demos.
package taskdb

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/taskcal/internal/task"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// Repository stores tasks. Implementations assign ids on Create and list
// tasks newest first.
//
// Update and Delete of an unknown id are not errors.
type Repository interface {
	List(ctx context.Context) ([]task.Task, error)
	Get(ctx context.Context, id int64) (*task.Task, error)
	Create(ctx context.Context, t task.Task) (int64, error)
	Update(ctx context.Context, id int64, t task.Task) error
	Delete(ctx context.Context, id int64) error
	Close(ctx context.Context) error
}

// timestampLayout is the format of created_at / updated_at.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

package taskdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roach88/taskcal/internal/task"
)

// Memory is a Repository held entirely in memory.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	tasks  map[int64]task.Task
	nextID int64
	now    func() time.Time
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[int64]task.Task),
		now:   time.Now,
	}
}

// List returns all tasks, newest first.
func (m *Memory) List(context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt > tasks[j].CreatedAt
		}
		return tasks[i].ID > tasks[j].ID
	})
	return tasks, nil
}

// Get returns the task with the given id, or ErrNotFound.
func (m *Memory) Get(_ context.Context, id int64) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Create stores t under a new id. New tasks always start pending.
func (m *Memory) Create(_ context.Context, t task.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := timestamp(m.now())
	t.ID = m.nextID
	t.Status = task.StatusPending
	t.CreatedAt = now
	t.UpdatedAt = now
	m.tasks[t.ID] = t
	return t.ID, nil
}

// Update replaces the editable fields of task id.
func (m *Memory) Update(_ context.Context, id int64, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tasks[id]
	if !ok {
		return nil
	}
	t.ID = id
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = timestamp(m.now())
	m.tasks[id] = t
	return nil
}

// Delete removes task id.
func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tasks, id)
	return nil
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error {
	return nil
}

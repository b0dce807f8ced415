// Package session holds the state behind the task views: the cached task
// list, the selected task, its form values and its attachments.
//
// A Session is owned by its caller and safe for concurrent use. Network and
// storage calls run without holding the lock; a Select whose response
// arrives after a newer Select or New is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/taskcal/internal/attachment"
	"github.com/roach88/taskcal/internal/remote"
	"github.com/roach88/taskcal/internal/task"
)

var (
	// ErrNoTaskSelected is returned by operations that need a current task.
	ErrNoTaskSelected = errors.New("select a task first")

	// ErrNoFiles is returned by Upload when no file was given.
	ErrNoFiles = errors.New("select a file")

	// ErrLoadFailed is returned when a task could not be fetched.
	ErrLoadFailed = errors.New("could not load the task")

	// ErrSaveFailed is returned when the backend rejected a create or update.
	ErrSaveFailed = errors.New("could not save the task")

	// ErrDeleteFailed is returned when the backend rejected a delete.
	ErrDeleteFailed = errors.New("could not delete the task")

	// ErrStale is returned by Select when a newer selection superseded it.
	ErrStale = errors.New("selection superseded")
)

// TaskAPI is the task backend as seen by the session.
// Failures are reported as sentinels: an empty list or a nil pointer.
type TaskAPI interface {
	List(ctx context.Context) []task.Task
	Get(ctx context.Context, id int64) *task.Task
	Create(ctx context.Context, t task.Task) *remote.Ack
	Update(ctx context.Context, id int64, t task.Task) *remote.Ack
	Delete(ctx context.Context, id int64) *remote.Ack
}

// Catalogue stores attachments.
type Catalogue interface {
	Add(ctx context.Context, taskID int64, files ...attachment.File) []attachment.Result
	ListByTask(ctx context.Context, taskID int64) ([]attachment.Entry, error)
	Remove(ctx context.Context, key string) error
}

// Form is the editable part of a task.
type Form struct {
	Title       string
	Description string
	Category    string
	Priority    int
	DueDate     string
	Status      task.Status
}

// FormFrom fills a form from a fetched task.
func FormFrom(t task.Task) Form {
	t = t.WithDefaults()
	return Form{
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		Status:      t.Status,
	}
}

// Task converts the form into the payload sent to the backend.
func (f Form) Task() task.Task {
	return task.Task{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Priority:    f.Priority,
		DueDate:     f.DueDate,
		Status:      f.Status,
	}.WithDefaults()
}

// Session is the state of one user's view.
type Session struct {
	api    TaskAPI
	files  Catalogue
	logger *slog.Logger

	mu          sync.Mutex
	generation  uint64
	tasks       []task.Task
	current     int64
	form        Form
	attachments []attachment.Entry
}

// New creates an empty session. A nil logger uses slog.Default().
func New(api TaskAPI, files Catalogue, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:         api,
		files:       files,
		logger:      logger,
		tasks:       []task.Task{},
		attachments: []attachment.Entry{},
	}
}

// Tasks returns a copy of the cached task list.
func (s *Session) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Current returns the selected task id, or 0 when nothing is selected.
func (s *Session) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Form returns the current form values.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Attachments returns a copy of the selected task's attachments.
func (s *Session) Attachments() []attachment.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]attachment.Entry, len(s.attachments))
	copy(out, s.attachments)
	return out
}

// Load replaces the task cache with the backend's list.
// A failed list leaves an empty cache.
func (s *Session) Load(ctx context.Context) []task.Task {
	tasks := s.api.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	return out
}

// New clears the form and deselects the current task.
func (s *Session) New() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.current = 0
	s.form = Form{}
	s.attachments = []attachment.Entry{}
}

// Select fetches task id, makes it current and lists its attachments.
func (s *Session) Select(ctx context.Context, id int64) (task.Task, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	t := s.api.Get(ctx, id)
	if t == nil {
		return task.Task{}, fmt.Errorf("task %d: %w", id, ErrLoadFailed)
	}
	entries, err := s.files.ListByTask(ctx, id)
	if err != nil {
		s.logger.Error("list attachments", "task", id, "error", err)
		entries = []attachment.Entry{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("discarding stale selection", "task", id)
		return task.Task{}, fmt.Errorf("task %d: %w", id, ErrStale)
	}
	s.current = t.ID
	if s.current == 0 {
		s.current = id
	}
	s.form = FormFrom(*t)
	s.attachments = entries
	return *t, nil
}

// Save creates a task from form when none is selected, or updates the
// selected one. Validation failures return before any network call.
// A created task becomes current. The task cache is refreshed on success.
func (s *Session) Save(ctx context.Context, form Form) (int64, error) {
	t := form.Task()
	if err := t.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	id := s.current
	s.form = form
	s.mu.Unlock()

	if id != 0 {
		if ack := s.api.Update(ctx, id, t); ack == nil {
			return 0, fmt.Errorf("update task %d: %w", id, ErrSaveFailed)
		}
	} else {
		ack := s.api.Create(ctx, t)
		if ack == nil {
			return 0, fmt.Errorf("create task: %w", ErrSaveFailed)
		}
		id = ack.ID
		s.mu.Lock()
		s.current = id
		s.mu.Unlock()
	}

	s.Load(ctx)
	return id, nil
}

// Delete removes the selected task, refreshes the cache and clears the form.
// The task's attachments are left in place.
func (s *Session) Delete(ctx context.Context) error {
	id := s.Current()
	if id == 0 {
		return ErrNoTaskSelected
	}

	if ack := s.api.Delete(ctx, id); ack == nil {
		return fmt.Errorf("delete task %d: %w", id, ErrDeleteFailed)
	}

	s.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked()
	return nil
}

// Upload attaches files to the selected task and re-lists its attachments.
// Per-file failures are reported in the results, never as success.
func (s *Session) Upload(ctx context.Context, files ...attachment.File) ([]attachment.Result, error) {
	id := s.Current()
	if id == 0 {
		return nil, ErrNoTaskSelected
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	results := s.files.Add(ctx, id, files...)
	s.refreshAttachments(ctx, id)
	return results, nil
}

// DeleteAttachment removes one attachment and re-lists the selected task's
// attachments.
func (s *Session) DeleteAttachment(ctx context.Context, key string) error {
	if err := s.files.Remove(ctx, key); err != nil {
		return err
	}
	if id := s.Current(); id != 0 {
		s.refreshAttachments(ctx, id)
	}
	return nil
}

func (s *Session) refreshAttachments(ctx context.Context, id int64) {
	entries, err := s.files.ListByTask(ctx, id)
	if err != nil {
		s.logger.Error("list attachments", "task", id, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == id {
		s.attachments = entries
	}
}

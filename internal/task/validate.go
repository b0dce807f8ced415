package task

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// DateLayout is the format of due dates.
const DateLayout = "2006-01-02"

// ErrInvalid is matched (via errors.Is) by every ValidationError.
var ErrInvalid = errors.New("invalid task")

// ValidationError reports the first field that fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// fieldMessages are the user-facing messages for each constrained field.
var fieldMessages = map[string]string{
	"title":    "title is required",
	"priority": fmt.Sprintf("priority must be between %d and %d", MinPriority, MaxPriority),
	"due_date": "due date must be formatted YYYY-MM-DD",
	"status":   "status is required",
	"id":       "id must not be negative",
}

// cue values are not safe for concurrent use; mu guards the schema.
var (
	mu         sync.Mutex
	schemaOnce sync.Once
	schemaDef  cue.Value
	schemaErr  error
)

func schema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile task schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Task"))
		if err := schemaDef.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Task: %w", err)
		}
	})
	return schemaDef, schemaErr
}

// Validate checks t against the task schema. The required title is checked
// first so an empty form always reports it, whatever else is wrong.
func (t Task) Validate() error {
	if !t.HasTitle() {
		return &ValidationError{Field: "title", Message: fieldMessages["title"]}
	}

	mu.Lock()
	defer mu.Unlock()

	def, err := schema()
	if err != nil {
		return err
	}

	v := def.Context().Encode(map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"category":    t.Category,
		"priority":    t.Priority,
		"due_date":    t.DueDate,
		"status":      string(t.Status),
	})
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return toValidationError(err)
	}

	// The schema checks the shape; the calendar checks the date exists.
	if t.DueDate != "" {
		if _, err := time.Parse(DateLayout, t.DueDate); err != nil {
			return &ValidationError{Field: "due_date", Message: fieldMessages["due_date"]}
		}
	}
	return nil
}

func toValidationError(err error) error {
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) == 0 {
			continue
		}
		field := path[len(path)-1]
		if msg, ok := fieldMessages[field]; ok {
			return &ValidationError{Field: field, Message: msg}
		}
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid %s", field)}
	}
	return &ValidationError{Message: err.Error()}
}

package task

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() Task {
	return Task{
		Title:       "Write report",
		Description: "Quarterly numbers",
		Category:    "work",
		Priority:    2,
		DueDate:     "2024-03-01",
		Status:      StatusPending,
	}
}

func TestWithDefaults(t *testing.T) {
	got := Task{Title: "x"}.WithDefaults()
	assert.Equal(t, DefaultPriority, got.Priority)
	assert.Equal(t, StatusPending, got.Status)

	kept := Task{Title: "x", Priority: 5, Status: "blocked"}.WithDefaults()
	assert.Equal(t, 5, kept.Priority)
	assert.Equal(t, Status("blocked"), kept.Status)
}

func TestPayload_ClearsServerFields(t *testing.T) {
	in := validTask()
	in.ID = 7
	in.CreatedAt = "2024-01-01 10:00:00"
	in.UpdatedAt = "2024-01-02 10:00:00"

	data, err := json.Marshal(in.Payload())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "id")
	assert.NotContains(t, fields, "created_at")
	assert.NotContains(t, fields, "updated_at")
	assert.Equal(t, "Write report", fields["title"])
}

func TestValidate_Accepts(t *testing.T) {
	cases := map[string]Task{
		"full":            validTask(),
		"no due date":     func() Task { tk := validTask(); tk.DueDate = ""; return tk }(),
		"leap day":        func() Task { tk := validTask(); tk.DueDate = "2024-02-29"; return tk }(),
		"custom status":   func() Task { tk := validTask(); tk.Status = "waiting-on-review"; return tk }(),
		"priority bounds": func() Task { tk := validTask(); tk.Priority = MaxPriority; return tk }(),
		"with backend id": func() Task { tk := validTask(); tk.ID = 42; return tk }(),
		"empty optionals": {Title: "Only a title", Priority: DefaultPriority, Status: StatusPending},
	}
	for name, tk := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, tk.Validate())
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Task)
		field string
	}{
		{"empty title", func(tk *Task) { tk.Title = "" }, "title"},
		{"blank title", func(tk *Task) { tk.Title = "   \t" }, "title"},
		{"priority too low", func(tk *Task) { tk.Priority = 0 }, "priority"},
		{"priority too high", func(tk *Task) { tk.Priority = 6 }, "priority"},
		{"bad due date", func(tk *Task) { tk.DueDate = "next week" }, "due_date"},
		{"due date with trailing text", func(tk *Task) { tk.DueDate = "2025-01-01garbage" }, "due_date"},
		{"due date out of range", func(tk *Task) { tk.DueDate = "2025-13-45" }, "due_date"},
		{"due date not in a leap year", func(tk *Task) { tk.DueDate = "2025-02-29" }, "due_date"},
		{"slash-separated due date", func(tk *Task) { tk.DueDate = "03/01/2025" }, "due_date"},
		{"empty status", func(tk *Task) { tk.Status = "" }, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := validTask()
			tc.edit(&tk)

			err := tk.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, fieldMessages[tc.field], verr.Error())
		})
	}
}

func TestValidate_EmptyTitleReportedFirst(t *testing.T) {
	err := Task{}.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
	assert.Equal(t, "title is required", verr.Message)
}

func TestDecode_NullOptionalFields(t *testing.T) {
	var tk Task
	err := json.Unmarshal([]byte(`{"id":3,"title":"t","description":null,"category":null,"priority":4,"due_date":null,"status":"pending"}`), &tk)
	require.NoError(t, err)
	assert.Equal(t, int64(3), tk.ID)
	assert.Empty(t, tk.Description)
	assert.Equal(t, 4, tk.Priority)
}

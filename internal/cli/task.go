package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/attachment"
	"github.com/roach88/taskcal/internal/session"
	"github.com/roach88/taskcal/internal/task"
	"github.com/roach88/taskcal/internal/view"
)

// TaskDetail is the JSON shape of "task show".
type TaskDetail struct {
	Task        task.Task         `json:"task"`
	Attachments []attachmentBrief `json:"attachments"`
}

// attachmentBrief is an attachment without its payload.
type attachmentBrief struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Type   string `json:"type"`
	TaskID int64  `json:"taskId"`
}

func briefs(entries []attachment.Entry) []attachmentBrief {
	out := make([]attachmentBrief, 0, len(entries))
	for _, e := range entries {
		out = append(out, attachmentBrief{Key: e.Key, Name: e.Name, Size: e.Size, Type: e.Type, TaskID: e.TaskID})
	}
	return out
}

// SaveResult is the JSON shape of "task create", "task update" and "task delete".
type SaveResult struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
	// Stranded counts attachments left behind by a delete.
	Stranded int `json:"stranded,omitempty"`
}

// taskFlags are the editable task fields.
type taskFlags struct {
	title       string
	description string
	category    string
	priority    int
	dueDate     string
	status      string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.category, "category", "", "task category")
	cmd.Flags().IntVar(&f.priority, "priority", task.DefaultPriority, "priority, 1 (highest) to 5")
	cmd.Flags().StringVar(&f.dueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.status, "status", string(task.StatusPending), "status (pending|in_progress|completed)")
}

// apply copies every flag the user set onto form.
func (f *taskFlags) apply(cmd *cobra.Command, form session.Form) session.Form {
	if cmd.Flags().Changed("title") {
		form.Title = f.title
	}
	if cmd.Flags().Changed("description") {
		form.Description = f.description
	}
	if cmd.Flags().Changed("category") {
		form.Category = f.category
	}
	if cmd.Flags().Changed("priority") {
		form.Priority = f.priority
	}
	if cmd.Flags().Changed("due") {
		form.DueDate = f.dueDate
	}
	if cmd.Flags().Changed("status") {
		form.Status = task.Status(f.status)
	}
	return form
}

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "List, show, create, update and delete tasks",
	}

	cmd.AddCommand(newTaskListCommand(rootOpts))
	cmd.AddCommand(newTaskShowCommand(rootOpts))
	cmd.AddCommand(newTaskCreateCommand(rootOpts))
	cmd.AddCommand(newTaskUpdateCommand(rootOpts))
	cmd.AddCommand(newTaskDeleteCommand(rootOpts))

	return cmd
}

func newTaskListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all tasks",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			tasks := a.session.Load(cmd.Context())
			if len(tasks) == 0 && !a.api.Health(cmd.Context()) {
				return formatter.Fail(ExitFailure, ErrCodeBackend, "could not load tasks", nil)
			}
			return formatter.Render(tasks, func(w io.Writer) error {
				return view.TaskList(w, tasks)
			})
		},
	}
}

func newTaskShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a task and its attachments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			t, err := a.session.Select(cmd.Context(), id)
			if err != nil {
				return selectFailure(formatter, id, err)
			}
			entries := a.session.Attachments()

			return formatter.Render(TaskDetail{Task: t, Attachments: briefs(entries)}, func(w io.Writer) error {
				return view.TaskDetail(w, t, entries)
			})
		},
	}
}

func newTaskCreateCommand(opts *RootOptions) *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: `Create a task on the backend.

Example:
  taskcal task create --title "Renew passport" --category admin --priority 2 --due 2025-03-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			a.session.New()
			form := flags.apply(cmd, session.Form{Priority: task.DefaultPriority, Status: task.StatusPending})
			id, err := a.session.Save(cmd.Context(), form)
			if err != nil {
				return saveFailure(formatter, err)
			}

			res := SaveResult{ID: id, Message: "Task created"}
			return formatter.Render(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Task created: #%d\n", id)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTaskUpdateCommand(opts *RootOptions) *cobra.Command {
	flags := &taskFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long: `Update the fields given as flags; the others keep their current values.

Example:
  taskcal task update 4 --status completed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			if _, err := a.session.Select(cmd.Context(), id); err != nil {
				return selectFailure(formatter, id, err)
			}
			form := flags.apply(cmd, a.session.Form())
			if _, err := a.session.Save(cmd.Context(), form); err != nil {
				return saveFailure(formatter, err)
			}

			res := SaveResult{ID: id, Message: "Task updated"}
			return formatter.Render(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Task updated: #%d\n", id)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newTaskDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long: `Delete a task on the backend.

Attachments of the task stay in the local store; "taskcal attach orphans"
lists them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			if _, err := a.session.Select(cmd.Context(), id); err != nil {
				return selectFailure(formatter, id, err)
			}
			stranded := len(a.session.Attachments())

			if err := a.session.Delete(cmd.Context()); err != nil {
				return formatter.Fail(ExitFailure, ErrCodeBackend, fmt.Sprintf("could not delete task %d", id), err)
			}

			res := SaveResult{ID: id, Message: "Task deleted", Stranded: stranded}
			return formatter.Render(res, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "Task deleted: #%d\n", id); err != nil {
					return err
				}
				if stranded > 0 {
					_, err := fmt.Fprintf(w, "%d attachment(s) remain in the local store\n", stranded)
					return err
				}
				return nil
			})
		},
	}
}

func selectFailure(formatter *OutputFormatter, id int64, err error) error {
	return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("could not load task %d", id), err)
}

func saveFailure(formatter *OutputFormatter, err error) error {
	var verr *task.ValidationError
	if errors.As(err, &verr) {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, verr.Message, nil)
	}
	return formatter.Fail(ExitFailure, ErrCodeBackend, "could not save the task", err)
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/attachment"
	"github.com/roach88/taskcal/internal/view"
)

// UploadResult is the JSON shape of one file in "attach add".
type UploadResult struct {
	File  string `json:"file"`
	Key   string `json:"key,omitempty"`
	Size  int64  `json:"size,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewAttachCommand creates the attach command group.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Manage file attachments kept in the local store",
	}

	cmd.AddCommand(newAttachAddCommand(rootOpts))
	cmd.AddCommand(newAttachListCommand(rootOpts))
	cmd.AddCommand(newAttachRemoveCommand(rootOpts))
	cmd.AddCommand(newAttachSaveCommand(rootOpts))
	cmd.AddCommand(newAttachOrphansCommand(rootOpts))
	cmd.AddCommand(newAttachWatchCommand(rootOpts))

	return cmd
}

func newAttachAddCommand(opts *RootOptions) *cobra.Command {
	var taskArg string
	cmd := &cobra.Command{
		Use:   "add --task <id> <file-or-pattern>...",
		Short: "Attach files to a task",
		Long: `Attach files to a task. Arguments are paths or doublestar patterns.

Example:
  taskcal attach add --task 4 report.pdf 'scans/**/*.png'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(taskArg)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}
			if len(args) == 0 {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, "select a file", nil)
			}

			paths, err := attachment.ExpandPatterns(args)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no files selected", err)
			}
			files := make([]attachment.File, 0, len(paths))
			for _, p := range paths {
				files = append(files, attachment.FromPath(p))
			}

			a, err := openApp(opts, func(e attachment.Entry) {
				formatter.VerboseLog("stored %s as %s", e.Name, e.Key)
			})
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			if _, err := a.session.Select(cmd.Context(), id); err != nil {
				return selectFailure(formatter, id, err)
			}
			results, err := a.session.Upload(cmd.Context(), files...)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}

			failed := 0
			out := make([]UploadResult, 0, len(results))
			for _, r := range results {
				ur := UploadResult{File: r.File, Key: r.Key}
				if r.Err != nil {
					failed++
					ur.Error = r.Err.Error()
				} else {
					ur.Size = r.Entry.Size
				}
				out = append(out, ur)
			}

			if err := formatter.Render(out, func(w io.Writer) error {
				return view.Results(w, results)
			}); err != nil {
				return err
			}
			if failed > 0 {
				return WrapExitError(ExitFailure, fmt.Sprintf("%s: %d of %d files not stored", ErrCodeStorage, failed, len(results)), nil)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskArg, "task", "", "task id (required)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newAttachListCommand(opts *RootOptions) *cobra.Command {
	var taskArg string
	cmd := &cobra.Command{
		Use:           "list --task <id>",
		Short:         "List a task's attachments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(taskArg)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			entries, err := a.files.ListByTask(cmd.Context(), id)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "could not list attachments", err)
			}
			return formatter.Render(briefs(entries), func(w io.Writer) error {
				return view.Attachments(w, entries)
			})
		},
	}
	cmd.Flags().StringVar(&taskArg, "task", "", "task id (required)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newAttachRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <key>",
		Short:         "Remove an attachment by key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			key := args[0]

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			if err := a.session.DeleteAttachment(cmd.Context(), key); err != nil {
				if errors.Is(err, attachment.ErrNotAttachment) {
					return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
				}
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not remove attachment", err)
			}

			return formatter.Render(map[string]string{"key": key, "message": "Attachment removed"}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Attachment removed: %s\n", key)
				return err
			})
		},
	}
}

func newAttachSaveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "save <key> [dir]",
		Short:         "Write an attachment back to a file",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			key := args[0]
			dir := "."
			if len(args) == 2 {
				dir = args[1]
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			e, err := a.files.Get(cmd.Context(), key)
			switch {
			case errors.Is(err, attachment.ErrNotFound), errors.Is(err, attachment.ErrNotAttachment):
				return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no attachment %q", key), err)
			case err != nil:
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not read attachment", err)
			}

			path, err := e.Save(dir)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "could not write file", err)
			}

			return formatter.Render(map[string]string{"key": key, "path": path}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Saved %s to %s\n", key, path)
				return err
			})
		},
	}
}

func newAttachOrphansCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List attachments whose task no longer exists",
		Long: `List attachments whose task is no longer on the backend.

Deleting a task never deletes its attachments; use "taskcal attach rm"
to remove the ones you no longer need.`,
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

			// An empty list is also the failure sentinel; refuse to call
			// everything an orphan when the backend is down.
			tasks := a.session.Load(cmd.Context())
			if len(tasks) == 0 && !a.api.Health(cmd.Context()) {
				return formatter.Fail(ExitFailure, ErrCodeBackend, "could not load tasks", nil)
			}
			live := make([]int64, 0, len(tasks))
			for _, t := range tasks {
				live = append(live, t.ID)
			}

			orphans, err := a.files.Orphans(cmd.Context(), live)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "could not list attachments", err)
			}
			return formatter.Render(briefs(orphans), func(w io.Writer) error {
				return view.Orphans(w, orphans)
			})
		},
	}
}

func newAttachWatchCommand(opts *RootOptions) *cobra.Command {
	var (
		taskArg string
		pattern string
	)
	cmd := &cobra.Command{
		Use:   "watch --task <id> <dir>",
		Short: "Attach files dropped into a directory",
		Long: `Watch a directory and attach every new file matching --pattern to a task,
until interrupted.

Example:
  taskcal attach watch --task 4 --pattern '*.pdf' ~/Downloads`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(taskArg)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, err.Error(), nil)
			}
			dir := args[0]

			var mu sync.Mutex
			a, err := openApp(opts, func(e attachment.Entry) {
				mu.Lock()
				defer mu.Unlock()
				_ = formatter.Render(briefs([]attachment.Entry{e})[0], func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "added   %s (%s)  %s\n", e.Name, view.SizeKB(e.Size), e.Key)
					return err
				})
			})
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			if _, err := a.session.Select(cmd.Context(), id); err != nil {
				return selectFailure(formatter, id, err)
			}

			ctx, cancel := signalContext(cmd.Context(), a.logger)
			defer cancel()

			formatter.VerboseLog("watching %s for %q, attaching to task %d", dir, pattern, id)
			err = a.files.Watch(ctx, dir, id, pattern, attachment.WithDebounce(a.cfg.Attachments.WatchDebounce))
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, "could not watch directory", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskArg, "task", "", "task id (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "*", "doublestar pattern for file names")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

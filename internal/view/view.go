// Package view renders tasks and attachments as plain text.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/taskcal/internal/attachment"
	"github.com/roach88/taskcal/internal/task"
)

// summaryLen is how many characters of a description the list shows.
const summaryLen = 50

// Badge is the priority marker shown next to a title.
func Badge(priority int) string {
	return fmt.Sprintf("P%d", priority)
}

// CategoryLabel returns the category, or a placeholder when there is none.
func CategoryLabel(category string) string {
	if category == "" {
		return "No category"
	}
	return category
}

// Summary returns the first characters of a description followed by "...",
// or a placeholder when there is no description.
func Summary(description string) string {
	if description == "" {
		return "No description"
	}
	r := []rune(description)
	if len(r) > summaryLen {
		r = r[:summaryLen]
	}
	return string(r) + "..."
}

// DueLabel returns "Due: <date>" or "Due: No date".
func DueLabel(due string) string {
	if due == "" {
		return "Due: No date"
	}
	return "Due: " + due
}

// SizeKB formats a byte count in kilobytes with two decimals.
func SizeKB(size int64) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

// TaskList writes one block per task, in the order given.
func TaskList(w io.Writer, tasks []task.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}

	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "#%d %s [%s] (%s)\n", t.ID, t.Title, Badge(t.Priority), t.Status)
		fmt.Fprintf(&b, "   %s\n", CategoryLabel(t.Category))
		fmt.Fprintf(&b, "   %s\n", Summary(t.Description))
		fmt.Fprintf(&b, "   %s\n", DueLabel(t.DueDate))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// TaskDetail writes every field of t followed by its attachments.
func TaskDetail(w io.Writer, t task.Task, entries []attachment.Entry) error {
	description := t.Description
	if description == "" {
		description = "No description"
	}
	due := t.DueDate
	if due == "" {
		due = "No date"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "  Status:      %s\n", t.Status)
	fmt.Fprintf(&b, "  Priority:    %s\n", Badge(t.Priority))
	fmt.Fprintf(&b, "  Category:    %s\n", CategoryLabel(t.Category))
	fmt.Fprintf(&b, "  Due:         %s\n", due)
	fmt.Fprintf(&b, "  Description: %s\n", description)
	if t.CreatedAt != "" {
		fmt.Fprintf(&b, "  Created:     %s\n", t.CreatedAt)
	}
	if t.UpdatedAt != "" {
		fmt.Fprintf(&b, "  Updated:     %s\n", t.UpdatedAt)
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return Attachments(w, entries)
}

// Attachments writes one line per attachment: name, size and storage key.
func Attachments(w io.Writer, entries []attachment.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No attachments.")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Attachments (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s (%s)  %s\n", e.Name, SizeKB(e.Size), e.Key)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Orphans writes attachments whose task no longer exists.
func Orphans(w io.Writer, entries []attachment.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No orphaned attachments.")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Orphaned attachments (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s (%s)  %s  task #%d\n", e.Name, SizeKB(e.Size), e.Key, e.TaskID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Results writes the outcome of an upload, one line per file.
func Results(w io.Writer, results []attachment.Result) error {
	var b strings.Builder
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "failed  %s: %v\n", r.File, r.Err)
			continue
		}
		fmt.Fprintf(&b, "added   %s (%s)  %s\n", r.Entry.Name, SizeKB(r.Entry.Size), r.Key)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

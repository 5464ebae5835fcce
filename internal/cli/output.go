// Package cli wires cfait's internal engine to a cobra-based terminal
// interface: one command per store operation, plain-text output by default
// and a --json flag for scripting.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cfait/cfait/internal/store"
	"github.com/cfait/cfait/internal/task"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errorResponse is the JSON envelope for a structured error, printed to
// stdout so a scripted caller only ever has one stream to read.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func shortUID(uid string) string {
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8]
}

// taskView is the JSON-friendly projection of a task.Task; it flattens the
// pointer date fields so a scripted caller doesn't have to special-case a
// nil *DateValue.
type taskView struct {
	UID          string   `json:"uid"`
	Summary      string   `json:"summary"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	Priority     int      `json:"priority"`
	Due          string   `json:"due,omitempty"`
	Start        string   `json:"start,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CalendarHref string   `json:"calendar"`
	ParentUID    string   `json:"parent_uid,omitempty"`
	Blocks       []string `json:"blocks,omitempty"`
	Blocked      bool     `json:"blocked"`
	Depth        int      `json:"depth"`
	Recurring    bool     `json:"recurring,omitempty"`
}

func toView(t *task.Task) taskView {
	v := taskView{
		UID:          t.UID,
		Summary:      t.Summary,
		Description:  t.Description,
		Status:       t.Status.String(),
		Priority:     t.Priority,
		Tags:         t.Tags,
		CalendarHref: t.CalendarHref,
		ParentUID:    t.ParentUID,
		Blocks:       t.Blocks,
		Blocked:      t.Blocked,
		Depth:        t.Depth,
		Recurring:    t.IsRecurring(),
	}
	if t.Due != nil {
		v.Due = t.Due.Time.Format("2006-01-02")
	}
	if t.Start != nil {
		v.Start = t.Start.Time.Format("2006-01-02")
	}
	return v
}

func statusMark(t *task.Task) string {
	switch t.Status {
	case task.Completed:
		return "x"
	case task.Cancelled:
		return "-"
	case task.InProcess:
		return "~"
	default:
		return " "
	}
}

func formatTaskLine(t *task.Task) string {
	indent := strings.Repeat("  ", t.Depth)
	due := ""
	if t.Due != nil {
		due = " @" + t.Due.Time.Format("2006-01-02")
	}
	prio := ""
	if t.Priority > 0 {
		prio = fmt.Sprintf(" !%d", t.Priority)
	}
	tags := ""
	if len(t.Tags) > 0 {
		tags = " #" + strings.Join(t.Tags, " #")
	}
	blocked := ""
	if t.Blocked {
		blocked = " [blocked]"
	}
	return fmt.Sprintf("%s[%s] %s %s%s%s%s%s", indent, statusMark(t), shortUID(t.UID), t.Summary, prio, due, tags, blocked)
}

func printTasks(w io.Writer, tasks []*task.Task, jsonMode bool) error {
	if jsonMode {
		views := make([]taskView, 0, len(tasks))
		for _, t := range tasks {
			views = append(views, toView(t))
		}
		return writeJSON(w, views)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(w, formatTaskLine(t))
	}
	return nil
}

func printTask(w io.Writer, t *task.Task, jsonMode bool) error {
	if jsonMode {
		return writeJSON(w, toView(t))
	}
	fmt.Fprintln(w, formatTaskLine(t))
	if t.Description != "" {
		fmt.Fprintln(w, "  "+strings.ReplaceAll(t.Description, "\n", "\n  "))
	}
	return nil
}

func printTags(w io.Writer, tags []store.TagCount, jsonMode bool) error {
	if jsonMode {
		return writeJSON(w, tags)
	}
	if len(tags) == 0 {
		fmt.Fprintln(os.Stderr, "No tags found.")
		return nil
	}
	for _, tc := range tags {
		name := tc.Tag
		if name == store.UncategorizedTag {
			name = "(uncategorized)"
		}
		fmt.Fprintf(w, "%-24s %d\n", name, tc.ActiveCount)
	}
	return nil
}

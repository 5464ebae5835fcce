package smartinput

import (
	"strconv"
	"strings"
	"time"

	"github.com/cfait/cfait/internal/task"
)

// Format is the inverse of Apply: it renders the token-controlled fields
// back onto the summary, so re-parsing Format(t) reproduces the same
// fields Apply left on t (spec.md §8's smart-input round-trip law).
//
// Grounded on original_source/src/model/parser.rs::to_smart_string.
func Format(t *task.Task) string {
	var b strings.Builder
	b.WriteString(t.Summary)

	if t.Priority > 0 {
		b.WriteString(" !" + strconv.Itoa(t.Priority))
	}
	if t.Start != nil {
		b.WriteString(" ^" + t.Start.Time.Format("2006-01-02"))
	}
	if t.Due != nil {
		b.WriteString(" @" + t.Due.Time.Format("2006-01-02"))
	}
	if t.EstimatedDuration > 0 {
		b.WriteString(" " + formatDuration(t.EstimatedDuration))
	}
	if t.RRule != "" {
		b.WriteString(" " + formatRRule(t.RRule))
	}
	for _, tag := range t.Tags {
		b.WriteString(" #" + tag)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	minutes := int64(d / time.Minute)
	switch {
	case minutes >= 525600:
		return "~" + strconv.FormatInt(minutes/525600, 10) + "y"
	case minutes >= 43200:
		return "~" + strconv.FormatInt(minutes/43200, 10) + "mo"
	case minutes >= 10080:
		return "~" + strconv.FormatInt(minutes/10080, 10) + "w"
	case minutes >= 1440:
		return "~" + strconv.FormatInt(minutes/1440, 10) + "d"
	case minutes >= 60:
		return "~" + strconv.FormatInt(minutes/60, 10) + "h"
	default:
		return "~" + strconv.FormatInt(minutes, 10) + "m"
	}
}

func formatRRule(rrule string) string {
	switch rrule {
	case "FREQ=DAILY":
		return "@daily"
	case "FREQ=WEEKLY":
		return "@weekly"
	case "FREQ=MONTHLY":
		return "@monthly"
	case "FREQ=YEARLY":
		return "@yearly"
	}
	if simple, ok := reconstructSimpleRRule(rrule); ok {
		return simple
	}
	return "rec:custom"
}

// reconstructSimpleRRule turns "FREQ=X;INTERVAL=Y" back into "@every Y
// units", the only shape Apply's "rec:every"/"@every" branch ever produces.
func reconstructSimpleRRule(rrule string) (string, bool) {
	parts := make(map[string]string)
	for _, kv := range strings.Split(rrule, ";") {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			parts[k] = v
		}
	}
	freq, ok := parts["FREQ"]
	if !ok {
		return "", false
	}
	interval := parts["INTERVAL"]
	if interval == "" {
		interval = "1"
	}
	var unit string
	switch freq {
	case "DAILY":
		unit = "days"
	case "WEEKLY":
		unit = "weeks"
	case "MONTHLY":
		unit = "months"
	case "YEARLY":
		unit = "years"
	default:
		return "", false
	}
	return "@every " + interval + " " + unit, true
}

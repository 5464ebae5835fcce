// Package smartinput turns a single free-text line into task fields:
// priority, due/start dates, an estimated duration, a recurrence rule and
// tags, all recognized as whitespace-delimited tokens anywhere in the line
// and stripped from the résidual summary.
package smartinput

import (
	"strconv"
	"strings"
	"time"

	"github.com/cfait/cfait/internal/task"
)

// Apply parses input against now (the reference instant for relative dates
// like @today/@2d) and writes the recognized fields onto t, replacing
// whatever those fields previously held — a smart-input edit is a full
// re-derivation of the token-controlled fields, not a patch. aliases
// expands a `#tag` into itself plus every tag it maps to, walking up a
// colon-namespaced hierarchy (`#a:b` checks `a:b` then `a`).
//
// Grounded on original_source/src/model/parser.rs::apply_smart_input,
// extended with the "@next week|month|year" relative form spec.md adds
// beyond what the original parser recognized.
func Apply(t *task.Task, input string, aliases map[string][]string, now time.Time) {
	t.Priority = 0
	t.Due = nil
	t.Start = nil
	t.RRule = ""
	t.EstimatedDuration = 0
	t.Tags = nil

	tokens := strings.Fields(input)
	var summary []string

	for i := 0; i < len(tokens); i++ {
		word := tokens[i]

		if p, ok := parsePriority(word); ok {
			t.Priority = p
			continue
		}

		if val, ok := stripAny(word, "est:", "~"); ok {
			if d, ok := parseDuration(val); ok {
				t.EstimatedDuration = d
				continue
			}
		}

		if val, ok := strings.CutPrefix(word, "#"); ok && val != "" {
			addTagWithAliases(t, val, aliases)
			continue
		}

		if val, ok := stripAny(word, "rec:", "@"); ok {
			if rrule, ok := parseRecurrenceKeyword(val); ok {
				t.RRule = rrule
				continue
			}
		}

		if (word == "rec:every" || word == "@every") && i+2 < len(tokens) {
			if n, err := strconv.Atoi(tokens[i+1]); err == nil {
				if freq := parseFreqUnit(tokens[i+2]); freq != "" {
					t.RRule = "FREQ=" + freq + ";INTERVAL=" + strconv.Itoa(n)
					i += 2
					continue
				}
			}
		}

		if (word == "@next") && i+1 < len(tokens) {
			if d, ok := parseNextUnit(tokens[i+1], now); ok {
				t.Due = &d
				i++
				continue
			}
		}

		if val, ok := stripAny(word, "due:", "@"); ok {
			if d, ok := parseSmartDate(val, now, true); ok {
				t.Due = &d
				continue
			}
		}

		if val, ok := stripAny(word, "start:", "^"); ok {
			if d, ok := parseSmartDate(val, now, false); ok {
				t.Start = &d
				continue
			}
		}

		summary = append(summary, word)
	}

	t.Summary = strings.Join(summary, " ")
}

// stripAny tries each prefix in order and returns the remainder of the
// first one that matches, mirroring the Rust parser's
// strip_prefix(a).or_else(strip_prefix(b)) chains.
func stripAny(word string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := strings.CutPrefix(word, p); ok {
			return v, true
		}
	}
	return "", false
}

func parsePriority(word string) (int, bool) {
	v, ok := strings.CutPrefix(word, "!")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 9 {
		return 0, false
	}
	return n, true
}

// parseDuration accepts the smart-input shorthand only: "30m", "30min",
// "1h", "2d", "1w", "3mo", "1y". ISO-8601 forms never appear at this layer
// (spec.md §4.1).
func parseDuration(val string) (time.Duration, bool) {
	lower := strings.ToLower(val)
	unit := time.Minute
	num := lower
	switch {
	case strings.HasSuffix(lower, "min"):
		num = strings.TrimSuffix(lower, "min")
	case strings.HasSuffix(lower, "mo"):
		num = strings.TrimSuffix(lower, "mo")
		unit = 30 * 24 * time.Hour
	case strings.HasSuffix(lower, "m"):
		num = strings.TrimSuffix(lower, "m")
	case strings.HasSuffix(lower, "h"):
		num = strings.TrimSuffix(lower, "h")
		unit = time.Hour
	case strings.HasSuffix(lower, "d"):
		num = strings.TrimSuffix(lower, "d")
		unit = 24 * time.Hour
	case strings.HasSuffix(lower, "w"):
		num = strings.TrimSuffix(lower, "w")
		unit = 7 * 24 * time.Hour
	case strings.HasSuffix(lower, "y"):
		num = strings.TrimSuffix(lower, "y")
		unit = 365 * 24 * time.Hour
	default:
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

func parseRecurrenceKeyword(val string) (string, bool) {
	switch val {
	case "daily":
		return "FREQ=DAILY", true
	case "weekly":
		return "FREQ=WEEKLY", true
	case "monthly":
		return "FREQ=MONTHLY", true
	case "yearly":
		return "FREQ=YEARLY", true
	default:
		return "", false
	}
}

func parseFreqUnit(unit string) string {
	u := strings.ToLower(unit)
	switch {
	case strings.HasPrefix(u, "day"):
		return "DAILY"
	case strings.HasPrefix(u, "week"):
		return "WEEKLY"
	case strings.HasPrefix(u, "month"):
		return "MONTHLY"
	case strings.HasPrefix(u, "year"):
		return "YEARLY"
	default:
		return ""
	}
}

func parseNextUnit(unit string, now time.Time) (task.DateValue, bool) {
	base := now
	switch strings.ToLower(unit) {
	case "week":
		return finalizeDate(base.AddDate(0, 0, 7), true), true
	case "month":
		return finalizeDate(base.AddDate(0, 1, 0), true), true
	case "year":
		return finalizeDate(base.AddDate(1, 0, 0), true), true
	default:
		return task.DateValue{}, false
	}
}

// parseSmartDate handles absolute "YYYY-MM-DD", the "today"/"tomorrow"
// keywords, and the "Nd"/"Nw"/"Nmo"/"Ny" relative offsets, anchored to
// now's local calendar day. endOfDay picks 23:59:59 (DUE) vs 00:00:00
// (DTSTART) local time for the finalized instant.
func parseSmartDate(val string, now time.Time, endOfDay bool) (task.DateValue, bool) {
	if t, err := time.ParseInLocation("2006-01-02", val, now.Location()); err == nil {
		return finalizeDate(t, endOfDay), true
	}

	today := now
	switch val {
	case "today":
		return finalizeDate(today, endOfDay), true
	case "tomorrow":
		return finalizeDate(today.AddDate(0, 0, 1), endOfDay), true
	}

	if n, ok := trimSignedSuffix(val, "mo"); ok {
		return finalizeDate(today.AddDate(0, n, 0), endOfDay), true
	}
	if n, ok := trimSignedSuffix(val, "d"); ok {
		return finalizeDate(today.AddDate(0, 0, n), endOfDay), true
	}
	if n, ok := trimSignedSuffix(val, "w"); ok {
		return finalizeDate(today.AddDate(0, 0, n*7), endOfDay), true
	}
	if n, ok := trimSignedSuffix(val, "y"); ok {
		return finalizeDate(today.AddDate(n, 0, 0), endOfDay), true
	}
	return task.DateValue{}, false
}

func trimSignedSuffix(val, suffix string) (int, bool) {
	v, ok := strings.CutSuffix(val, suffix)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func finalizeDate(d time.Time, endOfDay bool) task.DateValue {
	y, m, day := d.Date()
	if endOfDay {
		return task.DateValue{Time: time.Date(y, m, day, 23, 59, 59, 0, d.Location()), DateOnly: true}
	}
	return task.DateValue{Time: time.Date(y, m, day, 0, 0, 0, 0, d.Location()), DateOnly: true}
}

// Package query implements the whitespace-separated, all-ANDed search
// grammar used by the store facade's view (spec.md §4.4): free text,
// `#tag`, `is:` status keywords, and `!`/`~`/`@` relational filters on
// priority, duration and due date.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/cfait/cfait/internal/task"
)

// Op is a relational comparison operator.
type Op int

const (
	OpEQ Op = iota
	OpLT
	OpLE
	OpGT
	OpGE
)

func parseOp(s string) (Op, string) {
	switch {
	case strings.HasPrefix(s, "<="):
		return OpLE, s[2:]
	case strings.HasPrefix(s, ">="):
		return OpGE, s[2:]
	case strings.HasPrefix(s, "<"):
		return OpLT, s[1:]
	case strings.HasPrefix(s, ">"):
		return OpGT, s[1:]
	case strings.HasPrefix(s, "="):
		return OpEQ, s[1:]
	default:
		return OpEQ, s
	}
}

func compareInt(op Op, have, want int) bool {
	switch op {
	case OpLT:
		return have < want
	case OpLE:
		return have <= want
	case OpGT:
		return have > want
	case OpGE:
		return have >= want
	default:
		return have == want
	}
}

func compareTime(op Op, have, want time.Time) bool {
	switch op {
	case OpLT:
		return have.Before(want)
	case OpLE:
		return have.Before(want) || have.Equal(want)
	case OpGT:
		return have.After(want)
	case OpGE:
		return have.After(want) || have.Equal(want)
	default:
		return have.Equal(want)
	}
}

// statusKind is the argument to an `is:` term.
type statusKind int

const (
	statusDone statusKind = iota
	statusOngoing
	statusActive
)

type termKind int

const (
	termText termKind = iota
	termTag
	termStatus
	termPriority
	termDuration
	termDue
)

// term is one whitespace-delimited unit of the query, ANDed with every
// other term.
type term struct {
	kind     termKind
	text     string
	status   statusKind
	op       Op
	priority int
	duration time.Duration
	due      time.Time
	dueIsSet bool
}

// Query is a parsed search string, ready to test tasks against a
// reference instant (needed for relative due-date literals like "today").
type Query struct {
	terms       []term
	hasStatus   bool
	hasDuration bool
}

// Parse compiles a search string into a Query. Unrecognized `!`/`~`/`@`
// forms (bad operator, unparsable literal) degrade to a plain text term on
// the original token rather than failing the whole query — search input is
// typed live, and a malformed relational filter should still let the rest
// of the query narrow results.
func Parse(query string) *Query {
	q := &Query{}
	for _, tok := range strings.Fields(query) {
		t, ok := parseToken(tok)
		if !ok {
			t = term{kind: termText, text: strings.ToLower(tok)}
		}
		if t.kind == termStatus {
			q.hasStatus = true
		}
		q.terms = append(q.terms, t)
	}
	return q
}

func parseToken(tok string) (term, bool) {
	switch {
	case strings.HasPrefix(tok, "#"):
		v := strings.TrimPrefix(tok, "#")
		if v == "" {
			return term{}, false
		}
		return term{kind: termTag, text: v}, true

	case strings.HasPrefix(strings.ToLower(tok), "is:"):
		switch strings.ToLower(strings.TrimPrefix(tok, "is:")) {
		case "done":
			return term{kind: termStatus, status: statusDone}, true
		case "ongoing":
			return term{kind: termStatus, status: statusOngoing}, true
		case "active":
			return term{kind: termStatus, status: statusActive}, true
		default:
			return term{}, false
		}

	case strings.HasPrefix(tok, "!"):
		op, rest := parseOp(tok[1:])
		n, err := strconv.Atoi(rest)
		if err != nil {
			return term{}, false
		}
		return term{kind: termPriority, op: op, priority: n}, true

	case strings.HasPrefix(tok, "~"):
		op, rest := parseOp(tok[1:])
		d, ok := parseDurationLiteral(rest)
		if !ok {
			return term{}, false
		}
		return term{kind: termDuration, op: op, duration: d}, true

	case strings.HasPrefix(tok, "@"):
		op, rest := parseOp(tok[1:])
		if _, ok := parseDateLiteral(rest, time.Now()); !ok {
			return term{}, false
		}
		return term{kind: termDue, op: op, text: rest}, true

	default:
		return term{kind: termText, text: strings.ToLower(tok)}, true
	}
}

// Match reports whether t satisfies every term of the query. now anchors
// relative due-date literals ("today", "1w", "2d").
func (q *Query) Match(t *task.Task, now time.Time) bool {
	for _, term := range q.terms {
		if !term.matches(t, now) {
			return false
		}
	}
	return true
}

// HasStatusFilter reports whether the query names an explicit `is:` term,
// which the store facade uses to decide whether its own hide-completed
// default should be suppressed for this search (spec.md §4.4, mirroring
// original_source/src/store.rs::filter's has_status_filter check).
func (q *Query) HasStatusFilter() bool { return q.hasStatus }

func (term term) matches(t *task.Task, now time.Time) bool {
	switch term.kind {
	case termText:
		return strings.Contains(strings.ToLower(t.Summary), term.text) ||
			strings.Contains(strings.ToLower(t.Description), term.text)
	case termTag:
		return t.HasTag(term.text)
	case termStatus:
		switch term.status {
		case statusDone:
			return t.IsDone()
		case statusOngoing:
			return t.Status == task.InProcess
		default:
			return t.Status == task.NeedsAction
		}
	case termPriority:
		return compareInt(term.op, t.EffectivePriority(), term.priority)
	case termDuration:
		return compareInt(term.op, int(t.EstimatedDuration), int(term.duration))
	case termDue:
		want, ok := parseDateLiteral(term.text, now)
		if !ok || t.Due == nil {
			return false
		}
		return compareTime(term.op, t.Due.Time, want)
	default:
		return true
	}
}

package task

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Respawn computes the next occurrence of a recurring task once the current
// instance is completed: a fresh Task with a new UID, no server identity,
// NeedsAction status and no inherited dependencies, due at the next RRULE
// occurrence strictly after the current DUE. Returns false if the task is
// not recurring or has no DUE to anchor the rule to.
//
// Grounded on original_source/src/model.rs::respawn: the completed instance
// is left untouched (recurrence produces a new resource, it does not mutate
// history), and EXDATE entries are not carried onto the new instance since
// they describe exceptions to the parent series' own schedule tracking, not
// the freshly spawned task's.
func Respawn(t *Task) (*Task, bool) {
	if !t.IsRecurring() || t.Due == nil {
		return nil, false
	}

	set, err := rrule.StrToRRuleSet("DTSTART:" + t.Due.Time.UTC().Format("20060102T150405Z") + "\nRRULE:" + t.RRule)
	if err != nil {
		return nil, false
	}
	for _, ex := range t.ExDates {
		set.ExDate(ex.Time.UTC())
	}

	occurrences := set.Between(t.Due.Time, t.Due.Time.Add(366*24*time.Hour), false)
	if len(occurrences) == 0 {
		return nil, false
	}

	next := t.Clone()
	next.UID = NewLocalUID()
	next.Href = ""
	next.ETag = ""
	next.Status = NeedsAction
	next.Blocks = nil
	next.ExDates = nil
	next.Dirty = true
	due := DateValue{Time: occurrences[0], DateOnly: t.Due.DateOnly, TZID: t.Due.TZID}
	next.Due = &due
	if t.Start != nil {
		delta := occurrences[0].Sub(t.Due.Time)
		start := DateValue{Time: t.Start.Time.Add(delta), DateOnly: t.Start.DateOnly, TZID: t.Start.TZID}
		next.Start = &start
	}
	next.Completed = nil
	next.PercentComplete = 0
	return next, true
}

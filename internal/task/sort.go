package task

import (
	"sort"
	"strings"
	"time"
)

// SortOptions parametrizes the total order from spec.md §4.4.
type SortOptions struct {
	Now              time.Time
	SortCutoffMonths int // default 6; <= 0 disables the far bucket
}

func (o SortOptions) cutoff() (time.Time, bool) {
	if o.SortCutoffMonths <= 0 {
		return time.Time{}, false
	}
	now := o.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.AddDate(0, o.SortCutoffMonths, 0), true
}

func statusBucket(s Status) int {
	switch s {
	case InProcess:
		return 0
	case NeedsAction:
		return 1
	default: // Completed, Cancelled
		return 2
	}
}

func scheduledBucket(t *Task, now time.Time) int {
	if t.Start != nil && t.Start.Time.After(now) {
		return 1
	}
	return 0
}

// dueBucket classifies a task into the "near" (0) or "far" (1) due bucket,
// per spec.md §4.4 point 3. Tasks with no due date are treated as far so
// they sort by priority alone alongside genuinely distant ones.
func dueBucket(t *Task, cutoff time.Time, hasCutoff bool) int {
	if t.Due == nil {
		return 1
	}
	if !hasCutoff {
		return 0
	}
	if t.Due.Time.After(cutoff) {
		return 1
	}
	return 0
}

// Compare implements the total, stable order from spec.md §4.4: status
// bucket, scheduled bucket, due bucket + due date, priority, summary, UID.
func Compare(a, b *Task, opts SortOptions) int {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff, hasCutoff := opts.cutoff()

	if d := statusBucket(a.Status) - statusBucket(b.Status); d != 0 {
		return sign(d)
	}
	if d := scheduledBucket(a, now) - scheduledBucket(b, now); d != 0 {
		return sign(d)
	}

	ba, bb := dueBucket(a, cutoff, hasCutoff), dueBucket(b, cutoff, hasCutoff)
	if ba != bb {
		return sign(ba - bb)
	}
	if ba == 0 {
		// Both in the near bucket: sort by due date, then fall through.
		switch {
		case a.Due != nil && b.Due != nil && !a.Due.Time.Equal(b.Due.Time):
			if a.Due.Time.Before(b.Due.Time) {
				return -1
			}
			return 1
		case a.Due != nil && b.Due == nil:
			return -1
		case a.Due == nil && b.Due != nil:
			return 1
		}
	}

	if d := a.EffectivePriority() - b.EffectivePriority(); d != 0 {
		return sign(d)
	}

	if c := strings.Compare(strings.ToLower(a.Summary), strings.ToLower(b.Summary)); c != 0 {
		return c
	}
	return strings.Compare(a.UID, b.UID)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Sort orders tasks in place per Compare, breaking all remaining ties on UID
// so the order is total (spec.md §8 invariant: "no two tasks compare equal
// unless UIDs are equal").
func Sort(tasks []*Task, opts SortOptions) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return Compare(tasks[i], tasks[j], opts) < 0
	})
}

// Package sync implements the bidirectional CalDAV synchronizer:
// journal-flush push (Phase A), CTag-gated delta pull (Phase B), and the
// 3-way merge that resolves a 412 precondition failure without losing data
// (spec.md §4.7).
package sync

import (
	"strings"
	"time"

	"github.com/cfait/cfait/internal/task"
)

// MergeOutcome is what a 3-way merge produced.
type MergeOutcome struct {
	// Merged is the task to re-PUT with the fresh (re-fetched) ETag.
	Merged *task.Task
	// Copy is non-nil when a field had a real conflict: a freshly-minted
	// task carrying the remote's version of that field, queued as a create
	// on the same calendar so the losing side isn't silently dropped.
	Copy *task.Task
}

const conflictSummaryPrefix = "[conflict] "

// ThreeWayMerge reconciles base (the cache body the outgoing edit's ETag
// referred to), local (the in-flight outgoing edit), and remote (the
// current server body, re-fetched after a 412) per spec.md §4.7.
//
// This upgrades original_source/src/client/core.rs::three_way_merge's
// per-field macro: the original treats any field where both local and
// remote diverge from base as an unresolvable conflict and aborts the
// whole merge (returns None), pushing the caller to a coarser fallback.
// spec.md instead resolves real conflicts field-by-field — local wins the
// live task, and the remote's value survives as a same-calendar conflict
// copy — and additionally treats EXDATE/RELATED-TO/CATEGORIES as
// set-union fields that can never conflict at all. That divergence is
// deliberate (documented in DESIGN.md), not an oversight.
func ThreeWayMerge(base, local, remote *task.Task) MergeOutcome {
	merged := remote.Clone()
	merged.CalendarHref = remote.CalendarHref
	merged.Href = remote.Href
	merged.ETag = remote.ETag

	var copyTask *task.Task
	conflict := func() {
		if copyTask == nil {
			copyTask = remote.Clone()
			copyTask.UID = task.NewLocalUID()
			copyTask.Href = ""
			copyTask.ETag = ""
			copyTask.Summary = conflictSummaryPrefix + remote.Summary
			copyTask.Dirty = true
		}
	}

	mergeString(&merged.Summary, base.Summary, local.Summary, remote.Summary, conflict)
	mergeString(&merged.Description, base.Description, local.Description, remote.Description, conflict)
	mergeStatus(&merged.Status, base.Status, local.Status, remote.Status, conflict)
	mergeInt(&merged.Priority, base.Priority, local.Priority, remote.Priority, conflict)
	mergeDate(&merged.Due, base.Due, local.Due, remote.Due, conflict)
	mergeDate(&merged.Start, base.Start, local.Start, remote.Start, conflict)
	mergeDuration(&merged.EstimatedDuration, base.EstimatedDuration, local.EstimatedDuration, remote.EstimatedDuration, conflict)
	mergeString(&merged.RRule, base.RRule, local.RRule, remote.RRule, conflict)
	mergeString(&merged.ParentUID, base.ParentUID, local.ParentUID, remote.ParentUID, conflict)

	// Set-union fields per spec.md §4.7: never a real conflict.
	merged.ExDates = unionDates(base.ExDates, local.ExDates, remote.ExDates)
	merged.Blocks = unionStrings(base.Blocks, local.Blocks, remote.Blocks)
	merged.Tags = unionStrings(base.Tags, local.Tags, remote.Tags)

	merged.Unknown = mergeUnknown(base.Unknown, local.Unknown, remote.Unknown)

	return MergeOutcome{Merged: merged, Copy: copyTask}
}

// mergeString applies the per-field rule: if only one side changed from
// base, that side wins; if both changed to the SAME value, no conflict; if
// both changed to DIFFERENT values, it's a real conflict — local wins
// merged, remote is preserved via the conflict callback.
func mergeString(dst *string, base, local, remote string, conflict func()) {
	if local == base {
		*dst = remote
		return
	}
	if remote == base || remote == local {
		*dst = local
		return
	}
	*dst = local
	conflict()
}

func mergeStatus(dst *task.Status, base, local, remote task.Status, conflict func()) {
	if local == base {
		*dst = remote
		return
	}
	if remote == base || remote == local {
		*dst = local
		return
	}
	*dst = local
	conflict()
}

func mergeInt(dst *int, base, local, remote int, conflict func()) {
	if local == base {
		*dst = remote
		return
	}
	if remote == base || remote == local {
		*dst = local
		return
	}
	*dst = local
	conflict()
}

func mergeDuration(dst *time.Duration, base, local, remote time.Duration, conflict func()) {
	if local == base {
		*dst = remote
		return
	}
	if remote == base || remote == local {
		*dst = local
		return
	}
	*dst = local
	conflict()
}

func mergeDate(dst **task.DateValue, base, local, remote *task.DateValue, conflict func()) {
	if dateEqual(local, base) {
		*dst = remote
		return
	}
	if dateEqual(remote, base) || dateEqual(remote, local) {
		*dst = local
		return
	}
	*dst = local
	conflict()
}

func dateEqual(a, b *task.DateValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Time.Equal(b.Time) && a.DateOnly == b.DateOnly && a.TZID == b.TZID
}

func unionStrings(base, local, remote []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(vs []string) {
		for _, v := range vs {
			key := strings.ToLower(v)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	// base first so its ordering anchors the result, then whichever side
	// added something new.
	add(base)
	add(local)
	add(remote)
	return out
}

func unionDates(base, local, remote []task.DateValue) []task.DateValue {
	seen := make(map[string]bool)
	var out []task.DateValue
	add := func(vs []task.DateValue) {
		for _, v := range vs {
			key := v.Time.UTC().Format(time.RFC3339)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	add(base)
	add(local)
	add(remote)
	return out
}

// mergeUnknown unions preserved lines by line identity (RFC 5545 property
// name up to the first ':' or ';'), taking remote's text when both sides
// changed the same line — spec.md's "bias: do not fight other clients over
// unknown ground". Local's text for such a line is dropped: it is kept
// neither on the merged task nor on the conflict copy, which is a clone of
// remote.
func mergeUnknown(base, local, remote task.UnknownLines) task.UnknownLines {
	return task.UnknownLines{
		Todo:     mergeLineSet(base.Todo, local.Todo, remote.Todo),
		Calendar: mergeLineSet(base.Calendar, local.Calendar, remote.Calendar),
		Timezone: remote.Timezone,
	}
}

func mergeLineSet(base, local, remote []string) []string {
	baseByKey := indexLines(base)
	remoteByKey := indexLines(remote)

	order := make([]string, 0, len(remote)+len(local))
	seen := make(map[string]bool)
	result := make(map[string]string)

	registerAll := func(lines []string) {
		for _, l := range lines {
			k := lineKey(l)
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	registerAll(remote)
	registerAll(local)

	for _, l := range local {
		k := lineKey(l)
		if b, wasInBase := baseByKey[k]; wasInBase && l == b {
			// local didn't touch this line; prefer remote's version if present.
			if r, inRemote := remoteByKey[k]; inRemote {
				result[k] = r
			} else {
				result[k] = l
			}
			continue
		}
		// local changed or added this line.
		if r, inRemote := remoteByKey[k]; inRemote {
			if r == l {
				result[k] = l
			} else {
				result[k] = r // both changed the same line: remote wins verbatim
			}
		} else {
			result[k] = l
		}
	}
	for _, l := range remote {
		k := lineKey(l)
		if _, done := result[k]; !done {
			result[k] = l
		}
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		if v, ok := result[k]; ok {
			out = append(out, v)
		}
	}
	return out
}

func indexLines(lines []string) map[string]string {
	m := make(map[string]string, len(lines))
	for _, l := range lines {
		m[lineKey(l)] = l
	}
	return m
}

func lineKey(line string) string {
	for i, r := range line {
		if r == ':' || r == ';' {
			return line[:i]
		}
	}
	return line
}

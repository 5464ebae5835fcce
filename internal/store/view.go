package store

import (
	"sort"
	"strings"
	"time"

	"github.com/cfait/cfait/internal/query"
	"github.com/cfait/cfait/internal/task"
)

// ViewOptions parametrizes GetViewTasks: the query string, which tags are
// selected (if any) and how they combine, and an optional single calendar.
// Hide-completed and the sort cutoff always come from the loaded config.
type ViewOptions struct {
	QueryString  string
	SelectedTags []string // empty means "no tag filter"
	MatchAllTags bool
	CalendarHref string // empty means "every visible calendar"
	Now          time.Time
}

// GetViewTasks returns the tasks matching opts, hierarchically ordered
// (parents before children, each child block immediately after its
// parent) per task.OrganizeHierarchy. Status-bucket sorting and the
// hide_completed default both come from spec.md §4.4/§4.6:
// a query with an explicit is:done/is:active/is:ongoing term overrides the
// config default, matching
// original_source/src/store.rs::filter's has_status_filter check.
func (s *Store) GetViewTasks(opts ViewOptions) []*task.Task {
	s.mu.Lock()
	all := make([]*task.Task, 0, len(s.index))
	for _, t := range s.index {
		all = append(all, t)
	}
	hidden := make(map[string]bool)
	for href, c := range s.calendars {
		if c.Disabled || !c.Visible {
			hidden[href] = true
		}
	}
	cfg := s.cfg
	s.mu.Unlock()

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	q := query.Parse(opts.QueryString)

	filtered := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if opts.CalendarHref != "" && t.CalendarHref != opts.CalendarHref {
			continue
		}
		if opts.CalendarHref == "" && hidden[t.CalendarHref] {
			continue
		}
		if !q.HasStatusFilter() && cfg.HideCompleted && t.IsDone() {
			continue
		}
		if !q.Match(t, now) {
			continue
		}
		if !matchesTagSelection(t, opts.SelectedTags, opts.MatchAllTags) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortOpts := task.SortOptions{Now: now, SortCutoffMonths: cfg.SortCutoffMonths}
	return task.OrganizeHierarchy(filtered, sortOpts)
}

// matchesTagSelection implements the same uncategorized-aware selection
// rule as original_source/src/store.rs::filter's category branch: when
// MatchAllTags, every selected tag (or "no tags at all" for the
// Uncategorized sentinel) must hold; otherwise any one match is enough.
func matchesTagSelection(t *task.Task, selected []string, matchAll bool) bool {
	if len(selected) == 0 {
		return true
	}
	if matchAll {
		for _, sel := range selected {
			if sel == UncategorizedTag {
				if len(t.Tags) != 0 {
					return false
				}
				continue
			}
			if !t.HasTag(sel) {
				return false
			}
		}
		return true
	}
	for _, sel := range selected {
		if sel == UncategorizedTag && len(t.Tags) == 0 {
			return true
		}
		if sel != UncategorizedTag && t.HasTag(sel) {
			return true
		}
	}
	return false
}

// TagCount is one entry in GetAllTags: the tag name and how many
// not-done tasks currently carry it.
type TagCount struct {
	Tag         string
	ActiveCount int
}

// GetAllTags returns every tag present across the index (case-sensitive on
// the first-seen casing, since Task.Tags already de-duplicates
// case-insensitively on write), sorted alphabetically, with a synthetic
// Uncategorized bucket appended for tasks that carry no tags at all.
// When hideFullyCompletedTags is set, a tag whose every task is done is
// omitted (original_source/src/store.rs::get_all_categories).
func (s *Store) GetAllTags() []TagCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]int)
	present := make(map[string]bool)
	hasUncategorizedAny := false
	hasUncategorizedActive := false

	for _, t := range s.index {
		if len(t.Tags) == 0 {
			hasUncategorizedAny = true
			if !t.IsDone() {
				hasUncategorizedActive = true
			}
			continue
		}
		for _, tag := range t.Tags {
			present[tag] = true
			if !t.IsDone() {
				active[tag]++
			}
		}
	}

	var out []TagCount
	for tag := range present {
		count := active[tag]
		if s.cfg.HideFullyCompletedTags && count == 0 {
			continue
		}
		out = append(out, TagCount{Tag: tag, ActiveCount: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Tag) < strings.ToLower(out[j].Tag)
	})

	showUncategorized := hasUncategorizedAny
	if s.cfg.HideFullyCompletedTags {
		showUncategorized = hasUncategorizedActive
	}
	if showUncategorized {
		count := 0
		for _, t := range s.index {
			if len(t.Tags) == 0 && !t.IsDone() {
				count++
			}
		}
		out = append(out, TagCount{Tag: UncategorizedTag, ActiveCount: count})
	}
	return out
}

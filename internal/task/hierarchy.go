package task

// Index resolves UID lookups across every calendar, the way the store
// facade's in-memory index does. Depth, Blocked and BlockedByNames are defined only
// in terms of this narrow interface so they can be unit tested against a
// plain map without pulling in the store package.
type Index interface {
	ByUID(uid string) (*Task, bool)
}

// MapIndex is the trivial Index implementation used by tests and by any
// caller that already has a flat map of tasks.
type MapIndex map[string]*Task

func (m MapIndex) ByUID(uid string) (*Task, bool) { t, ok := m[uid]; return t, ok }

// Depth follows t's PARENT chain within the index, capped at MaxDepth to
// truncate cycles or pathological chains rather than recurse forever
// (spec.md §4.2, §9).
func Depth(t *Task, idx Index) int {
	depth := 0
	seen := map[string]bool{t.UID: true}
	cur := t
	for depth < MaxDepth {
		if cur.ParentUID == "" {
			break
		}
		parent, ok := idx.ByUID(cur.ParentUID)
		if !ok || seen[parent.UID] {
			break
		}
		seen[parent.UID] = true
		cur = parent
		depth++
	}
	return depth
}

// Blocked reports whether t is blocked: true iff any task it DEPENDS-ON
// exists and is not Completed/Cancelled (spec.md §3 invariant). A dangling
// dependency UID that resolves to nothing does not block.
func Blocked(t *Task, idx Index) bool {
	for _, uid := range boundedBlocks(t) {
		dep, ok := idx.ByUID(uid)
		if !ok {
			continue
		}
		if !dep.IsDone() {
			return true
		}
	}
	return false
}

// BlockedByNames resolves t's DEPENDS-ON UIDs to summaries, for display,
// bounded the same way Blocked is.
func BlockedByNames(t *Task, idx Index) []string {
	var names []string
	for _, uid := range boundedBlocks(t) {
		dep, ok := idx.ByUID(uid)
		if !ok || dep.IsDone() {
			continue
		}
		names = append(names, dep.Summary)
	}
	return names
}

// boundedBlocks returns at most MaxDepth dependency UIDs; a task with more
// than that many DEPENDS-ON links is pathological data and the excess is
// truncated with no further diagnostic than this cap (spec.md §9).
func boundedBlocks(t *Task) []string {
	if len(t.Blocks) <= MaxDepth {
		return t.Blocks
	}
	return t.Blocks[:MaxDepth]
}

// RebuildDerived recomputes Depth and Blocked for every task against idx.
// Called by the store after any mutation that could change hierarchy or
// dependency state.
func RebuildDerived(tasks []*Task, idx Index) {
	for _, t := range tasks {
		t.Depth = Depth(t, idx)
		t.Blocked = Blocked(t, idx)
	}
}

// OrganizeHierarchy sorts tasks per opts and then reorders them into a
// depth-first parent/child walk (root, its children, their children, ...),
// the presentation order a tree-view UI wants. Orphans (parent not present
// in tasks) are treated as roots at depth 0, per
// original_source/src/model.rs::organize_hierarchy.
func OrganizeHierarchy(tasks []*Task, opts SortOptions) []*Task {
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.UID] = true
	}

	sorted := append([]*Task(nil), tasks...)
	Sort(sorted, opts)

	children := make(map[string][]*Task)
	var roots []*Task
	for _, t := range sorted {
		if t.ParentUID == "" || !present[t.ParentUID] {
			roots = append(roots, t)
			continue
		}
		children[t.ParentUID] = append(children[t.ParentUID], t)
	}

	var out []*Task
	var walk func(t *Task, depth int)
	walk = func(t *Task, depth int) {
		out = append(out, t)
		if depth >= MaxDepth {
			return
		}
		for _, c := range children[t.UID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return out
}

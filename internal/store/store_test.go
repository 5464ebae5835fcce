package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfait/cfait/internal/cache"
	"github.com/cfait/cfait/internal/config"
	"github.com/cfait/cfait/internal/journal"
	"github.com/cfait/cfait/internal/task"
)

// newTestStore builds an offline Store (no CalDAV client) directly, since
// Bootstrap resolves XDG paths that a unit test should not depend on.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	c, err := cache.Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	j, err := journal.Open(filepath.Join(dir, "journal.log"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	s := &Store{
		cfg:        &config.Config{SortCutoffMonths: 6, TagAliases: map[string][]string{}},
		cache:      c,
		journal:    j,
		index:      make(task.MapIndex),
		calendars:  map[string]*task.Calendar{},
		syncSignal: make(chan struct{}, 1),
	}
	local := task.NewLocalCalendar()
	s.calendars[local.Href] = &local
	return s
}

func TestAddTaskSmartIndexesAndJournals(t *testing.T) {
	s := newTestStore(t)

	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Buy milk !1 @tomorrow #errand")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	if tt.Summary != "Buy milk" {
		t.Fatalf("expected summary to strip tokens, got %q", tt.Summary)
	}
	if tt.Priority != 1 {
		t.Fatalf("expected priority 1, got %d", tt.Priority)
	}
	if got, ok := s.ByUID(tt.UID); !ok || got.UID != tt.UID {
		t.Fatal("expected the new task to be indexed")
	}
	if len(s.journal.Pending()) != 1 {
		t.Fatalf("expected one pending journal record, got %d", len(s.journal.Pending()))
	}
}

func TestAddTaskSmartRejectsEmptySummary(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddTaskSmart(task.LocalCalendarHref, "!1 @tomorrow"); err == nil {
		t.Fatal("expected an error for a token-only input with no summary")
	}
}

func TestToggleTaskFlipsStatus(t *testing.T) {
	s := newTestStore(t)
	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Water plants")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}

	toggled, err := s.ToggleTask(tt.UID)
	if err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	if toggled.Status != task.Completed {
		t.Fatalf("expected Completed, got %v", toggled.Status)
	}

	toggled, err = s.ToggleTask(tt.UID)
	if err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	if toggled.Status != task.NeedsAction {
		t.Fatalf("expected NeedsAction after second toggle, got %v", toggled.Status)
	}
}

func TestChangePriorityStepsThroughRungs(t *testing.T) {
	s := newTestStore(t)
	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Unpriorised task")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	if tt.Priority != 0 {
		t.Fatalf("expected unset priority, got %d", tt.Priority)
	}

	steps := []int{9, 5, 1, 1}
	for _, want := range steps {
		got, err := s.ChangePriority(tt.UID, 1)
		if err != nil {
			t.Fatalf("ChangePriority: %v", err)
		}
		if got.Priority != want {
			t.Fatalf("expected priority %d, got %d", want, got.Priority)
		}
	}
}

func TestDeleteTaskRemovesFromIndex(t *testing.T) {
	s := newTestStore(t)
	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Throwaway task")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	if err := s.DeleteTask(tt.UID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, ok := s.ByUID(tt.UID); ok {
		t.Fatal("expected the task to be gone from the index")
	}
}

func TestGetAllTagsIncludesUncategorized(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddTaskSmart(task.LocalCalendarHref, "Tagged task #work"); err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	if _, err := s.AddTaskSmart(task.LocalCalendarHref, "Bare task"); err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}

	tags := s.GetAllTags()
	var sawWork, sawUncategorized bool
	for _, tc := range tags {
		if tc.Tag == "work" {
			sawWork = true
		}
		if tc.Tag == UncategorizedTag {
			sawUncategorized = true
		}
	}
	if !sawWork || !sawUncategorized {
		t.Fatalf("expected both work and uncategorized buckets, got %+v", tags)
	}
}

func TestGetViewTasksHidesCompletedByDefault(t *testing.T) {
	s := newTestStore(t)
	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Finish report")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	if _, err := s.ToggleTask(tt.UID); err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	s.cfg.HideCompleted = true

	visible := s.GetViewTasks(ViewOptions{})
	for _, v := range visible {
		if v.UID == tt.UID {
			t.Fatal("expected the completed task to be hidden by default")
		}
	}

	explicit := s.GetViewTasks(ViewOptions{QueryString: "is:done"})
	found := false
	for _, v := range explicit {
		if v.UID == tt.UID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected is:done to override the hide_completed default")
	}
}

func TestMoveTaskChangesCalendarHref(t *testing.T) {
	s := newTestStore(t)
	other := &task.Calendar{Href: "/calendars/work/", DisplayName: "Work", Visible: true}
	s.calendars[other.Href] = other

	tt, err := s.AddTaskSmart(task.LocalCalendarHref, "Movable task")
	if err != nil {
		t.Fatalf("AddTaskSmart: %v", err)
	}
	moved, err := s.MoveTask(tt.UID, other.Href)
	if err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	if moved.CalendarHref != other.Href {
		t.Fatalf("expected calendar href to change, got %q", moved.CalendarHref)
	}
}

func TestWatchCachePicksUpExternalWrite(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.WatchCache(ctx) }()

	external := task.New()
	external.CalendarHref = task.LocalCalendarHref
	external.Summary = "Written by another process"
	if err := s.cache.PutTask(task.LocalCalendarHref, external); err != nil {
		t.Fatalf("PutTask: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.ByUID(external.UID); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected an externally-written task to appear in the index after a cache watch reload")
}

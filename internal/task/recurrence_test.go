package task

import (
	"testing"
	"time"
)

func TestRespawnMintsNextOccurrence(t *testing.T) {
	due := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	original := New()
	original.UID = "uid-1"
	original.Summary = "Water plants"
	original.RRule = "FREQ=DAILY;COUNT=5"
	original.Due = &DateValue{Time: due}
	original.Status = Completed
	original.Completed = &DateValue{Time: due}
	original.PercentComplete = 100
	original.Blocks = []string{"some-dep"}

	next, ok := Respawn(original)
	if !ok {
		t.Fatal("expected Respawn to succeed for a daily recurring task")
	}
	if next.UID == original.UID {
		t.Fatal("expected a fresh UID for the respawned task")
	}
	if next.Href != "" || next.ETag != "" {
		t.Fatalf("expected no server identity on the respawned task, got href=%q etag=%q", next.Href, next.ETag)
	}
	if next.Status != NeedsAction {
		t.Fatalf("expected NeedsAction, got %v", next.Status)
	}
	if next.Completed != nil {
		t.Fatal("expected Completed to be cleared")
	}
	if next.PercentComplete != 0 {
		t.Fatalf("expected PercentComplete reset to 0, got %d", next.PercentComplete)
	}
	if next.Blocks != nil {
		t.Fatalf("expected no inherited dependencies, got %v", next.Blocks)
	}
	if next.Due == nil || !next.Due.Time.After(due) {
		t.Fatalf("expected the next due date to be strictly after the original, got %+v", next.Due)
	}

	if original.Status != Completed || original.UID != "uid-1" {
		t.Fatal("expected the completed instance to be left untouched")
	}
}

func TestRespawnShiftsStartByTheSameDelta(t *testing.T) {
	due := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	start := due.Add(-2 * time.Hour)
	original := New()
	original.UID = "uid-1"
	original.RRule = "FREQ=DAILY;COUNT=5"
	original.Due = &DateValue{Time: due}
	original.Start = &DateValue{Time: start}
	original.Status = Completed

	next, ok := Respawn(original)
	if !ok {
		t.Fatal("expected Respawn to succeed")
	}
	gotDelta := next.Due.Time.Sub(next.Start.Time)
	wantDelta := due.Sub(start)
	if gotDelta != wantDelta {
		t.Fatalf("expected START to shift by the same delta as DUE, got %v want %v", gotDelta, wantDelta)
	}
}

func TestRespawnFailsForNonRecurringTask(t *testing.T) {
	tt := New()
	tt.Due = &DateValue{Time: time.Now()}
	if _, ok := Respawn(tt); ok {
		t.Fatal("expected Respawn to fail for a task with no RRULE")
	}
}

func TestRespawnFailsWithoutDueDate(t *testing.T) {
	tt := New()
	tt.RRule = "FREQ=DAILY"
	if _, ok := Respawn(tt); ok {
		t.Fatal("expected Respawn to fail for a recurring task with no DUE to anchor the rule to")
	}
}

func TestRespawnFailsWhenSeriesHasEnded(t *testing.T) {
	due := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tt := New()
	tt.RRule = "FREQ=DAILY;COUNT=1"
	tt.Due = &DateValue{Time: due}
	if _, ok := Respawn(tt); ok {
		t.Fatal("expected Respawn to report no next occurrence once a COUNT-bounded series is exhausted")
	}
}

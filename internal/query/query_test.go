package query

import (
	"testing"
	"time"

	"github.com/cfait/cfait/internal/task"
)

func makeTask(summary string, priority int, status task.Status, due *time.Time, tags ...string) *task.Task {
	t := task.New()
	t.Summary = summary
	t.Priority = priority
	t.Status = status
	t.Tags = tags
	if due != nil {
		t.Due = &task.DateValue{Time: *due}
	}
	return t
}

func TestTextTermMatchesSummaryOrDescription(t *testing.T) {
	now := time.Now()
	tk := makeTask("Buy groceries", 0, task.NeedsAction, nil)
	tk.Description = "milk and eggs"

	if !Parse("groceries").Match(tk, now) {
		t.Fatal("expected summary match")
	}
	if !Parse("eggs").Match(tk, now) {
		t.Fatal("expected description match")
	}
	if Parse("bicycle").Match(tk, now) {
		t.Fatal("expected no match")
	}
}

func TestTagAndStatusTerms(t *testing.T) {
	now := time.Now()
	tk := makeTask("Ship release", 0, task.InProcess, nil, "work", "urgent")

	if !Parse("#work is:ongoing").Match(tk, now) {
		t.Fatal("expected tag+status match")
	}
	if Parse("#personal").Match(tk, now) {
		t.Fatal("expected tag mismatch")
	}
	if Parse("is:done").Match(tk, now) {
		t.Fatal("expected status mismatch")
	}
}

func TestPriorityRelationalOperator(t *testing.T) {
	now := time.Now()
	tk := makeTask("Urgent thing", 2, task.NeedsAction, nil)

	if !Parse("!<=3").Match(tk, now) {
		t.Fatal("expected !<=3 to match priority 2")
	}
	if Parse("!>3").Match(tk, now) {
		t.Fatal("expected !>3 to not match priority 2")
	}
}

func TestDueRelationalOperator(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	tk := makeTask("Report", 0, task.NeedsAction, &due)

	if !Parse("@>today").Match(tk, now) {
		t.Fatal("expected due date after today to match @>today")
	}
	if Parse("@<today").Match(tk, now) {
		t.Fatal("expected due date after today to not match @<today")
	}
}

func TestDurationRelationalOperator(t *testing.T) {
	now := time.Now()
	tk := makeTask("Quick task", 0, task.NeedsAction, nil)
	tk.EstimatedDuration = 20 * time.Minute

	if !Parse("~<30m").Match(tk, now) {
		t.Fatal("expected 20m task to match ~<30m")
	}
	if Parse("~>30m").Match(tk, now) {
		t.Fatal("expected 20m task to not match ~>30m")
	}
}

func TestHasStatusFilter(t *testing.T) {
	if !Parse("is:done #work").HasStatusFilter() {
		t.Fatal("expected HasStatusFilter to be true")
	}
	if Parse("#work").HasStatusFilter() {
		t.Fatal("expected HasStatusFilter to be false")
	}
}

func TestMalformedRelationalFallsBackToText(t *testing.T) {
	now := time.Now()
	tk := makeTask("!notanumber leftover", 0, task.NeedsAction, nil)
	if !Parse("!notanumber").Match(tk, now) {
		t.Fatal("expected malformed relational term to degrade to text search")
	}
}

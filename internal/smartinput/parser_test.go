package smartinput

import (
	"testing"
	"time"

	"github.com/cfait/cfait/internal/task"
)

func TestApplyExampleFromSpec(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tt := task.New()
	Apply(tt, "Buy cat food !1 @2025-12-31 ~15m #home", nil, now)

	if tt.Summary != "Buy cat food" {
		t.Fatalf("unexpected summary: %q", tt.Summary)
	}
	if tt.Priority != 1 {
		t.Fatalf("unexpected priority: %d", tt.Priority)
	}
	if tt.Due == nil || tt.Due.Time.Format("2006-01-02") != "2025-12-31" {
		t.Fatalf("unexpected due: %+v", tt.Due)
	}
	if tt.EstimatedDuration != 15*time.Minute {
		t.Fatalf("unexpected duration: %v", tt.EstimatedDuration)
	}
	if len(tt.Tags) != 1 || tt.Tags[0] != "home" {
		t.Fatalf("unexpected tags: %v", tt.Tags)
	}
}

func TestApplyNoTokensRoundTrips(t *testing.T) {
	now := time.Now()
	input := "Just a plain summary line"
	tt := task.New()
	Apply(tt, input, nil, now)
	if got := Format(tt); got != input {
		t.Fatalf("Format(Apply(S)) = %q, want %q", got, input)
	}
}

func TestApplyAliasExpansionIsIdempotent(t *testing.T) {
	aliases := map[string][]string{"work:urgent": {"urgent", "work"}}
	now := time.Now()

	once := task.New()
	Apply(once, "Ship the release #work:urgent", aliases, now)

	twice := task.New()
	Apply(twice, Format(once), aliases, now)

	if len(once.Tags) != len(twice.Tags) {
		t.Fatalf("alias expansion not idempotent: %v vs %v", once.Tags, twice.Tags)
	}
	for _, tag := range once.Tags {
		if !twice.HasTag(tag) {
			t.Fatalf("tag %q lost on second application", tag)
		}
	}
}

func TestApplyRecurrenceEvery(t *testing.T) {
	now := time.Now()
	tt := task.New()
	Apply(tt, "Water plants @every 2 weeks", nil, now)
	if tt.RRule != "FREQ=WEEKLY;INTERVAL=2" {
		t.Fatalf("unexpected rrule: %q", tt.RRule)
	}
	if tt.Summary != "Water plants" {
		t.Fatalf("unexpected summary: %q", tt.Summary)
	}
}

func TestApplyStartAndDueDistinctTokens(t *testing.T) {
	now := time.Now()
	tt := task.New()
	Apply(tt, "Plan trip ^2025-01-01 due:2025-02-01", nil, now)
	if tt.Start == nil || tt.Start.Time.Format("2006-01-02") != "2025-01-01" {
		t.Fatalf("unexpected start: %+v", tt.Start)
	}
	if tt.Due == nil || tt.Due.Time.Format("2006-01-02") != "2025-02-01" {
		t.Fatalf("unexpected due: %+v", tt.Due)
	}
}

func TestApplyRelativeDates(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	tt := task.New()
	Apply(tt, "Task @tomorrow", nil, now)
	if tt.Due == nil || tt.Due.Time.Format("2006-01-02") != "2025-06-02" {
		t.Fatalf("unexpected tomorrow due: %+v", tt.Due)
	}

	tt2 := task.New()
	Apply(tt2, "Task @next week", nil, now)
	if tt2.Due == nil || tt2.Due.Time.Format("2006-01-02") != "2025-06-08" {
		t.Fatalf("unexpected next-week due: %+v", tt2.Due)
	}
}

func TestExtractInlineAliases(t *testing.T) {
	cleaned, aliases := ExtractInlineAliases("Ship it #urgent=work,priority #urgent")
	if cleaned != "Ship it #urgent #urgent" {
		t.Fatalf("unexpected cleaned string: %q", cleaned)
	}
	if len(aliases["urgent"]) != 2 || aliases["urgent"][0] != "work" || aliases["urgent"][1] != "priority" {
		t.Fatalf("unexpected aliases: %v", aliases)
	}
}

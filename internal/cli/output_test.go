package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/cfait/cfait/internal/task"
)

func TestShortUIDTruncatesLongUIDs(t *testing.T) {
	if got := shortUID("12345678-abcd-ef00-0000-000000000000"); got != "12345678" {
		t.Fatalf("expected 8-char prefix, got %q", got)
	}
	if got := shortUID("short"); got != "short" {
		t.Fatalf("expected short uid unchanged, got %q", got)
	}
}

func TestFormatTaskLineIncludesTokens(t *testing.T) {
	due, err := time.Parse("2006-01-02", "2026-08-10")
	if err != nil {
		t.Fatalf("parsing date: %v", err)
	}

	tt := task.New()
	tt.Summary = "Buy milk"
	tt.Priority = 1
	tt.Tags = []string{"errand"}
	tt.Due = &task.DateValue{Time: due, DateOnly: true}

	line := formatTaskLine(tt)
	for _, want := range []string{"Buy milk", "!1", "@2026-08-10", "#errand"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected line to contain %q, got %q", want, line)
		}
	}
}

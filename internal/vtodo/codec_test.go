package vtodo

import (
	"strings"
	"testing"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/task"
)

func mustDecode(t *testing.T, raw string) *task.Task {
	t.Helper()
	tt, err := Decode(raw, "\"etag-1\"", "/cal/1/task.ics", "/cal/1/")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return tt
}

func TestDecodeBasicFields(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VTODO\r\n" +
		"UID:abc-123\r\n" +
		"SUMMARY:Buy cat food\r\n" +
		"STATUS:NEEDS-ACTION\r\n" +
		"PRIORITY:1\r\n" +
		"DUE;VALUE=DATE:20251231\r\n" +
		"CATEGORIES:home,errands\r\n" +
		"END:VTODO\r\n" +
		"END:VCALENDAR\r\n"

	tt := mustDecode(t, raw)
	if tt.UID != "abc-123" || tt.Summary != "Buy cat food" || tt.Priority != 1 {
		t.Fatalf("unexpected task: %+v", tt)
	}
	if tt.Due == nil || !tt.Due.DateOnly {
		t.Fatalf("expected date-only DUE, got %+v", tt.Due)
	}
	if len(tt.Tags) != 2 || tt.Tags[0] != "home" || tt.Tags[1] != "errands" {
		t.Fatalf("unexpected tags: %v", tt.Tags)
	}
}

func TestRoundTripPreservesUnknownLine(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VTODO\r\n" +
		"UID:abc-123\r\n" +
		"SUMMARY:Task with custom field\r\n" +
		"STATUS:NEEDS-ACTION\r\n" +
		"X-APPLE-SORT-ORDER:42\r\n" +
		"END:VTODO\r\n" +
		"END:VCALENDAR\r\n"

	tt := mustDecode(t, raw)
	if len(tt.Unknown.Todo) != 1 || tt.Unknown.Todo[0] != "X-APPLE-SORT-ORDER:42" {
		t.Fatalf("expected unknown line preserved, got %v", tt.Unknown.Todo)
	}

	encoded := Encode(tt)
	if !strings.Contains(encoded, "X-APPLE-SORT-ORDER:42") {
		t.Fatalf("encoded output dropped unknown line:\n%s", encoded)
	}

	again := mustDecode(t, encoded)
	if again.Summary != tt.Summary || again.UID != tt.UID {
		t.Fatalf("round trip lost fields: %+v vs %+v", again, tt)
	}
}

func TestRelatedToParentAndMultipleDependsOn(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VTODO\r\n" +
		"UID:child-1\r\n" +
		"SUMMARY:Child task\r\n" +
		"STATUS:NEEDS-ACTION\r\n" +
		"RELATED-TO:parent-1\r\n" +
		"RELATED-TO;RELTYPE=DEPENDS-ON:dep-1\r\n" +
		"RELATED-TO;RELTYPE=DEPENDS-ON:dep-2\r\n" +
		"END:VTODO\r\n" +
		"END:VCALENDAR\r\n"

	tt := mustDecode(t, raw)
	if tt.ParentUID != "parent-1" {
		t.Fatalf("expected ParentUID parent-1, got %q", tt.ParentUID)
	}
	if len(tt.Blocks) != 2 || tt.Blocks[0] != "dep-1" || tt.Blocks[1] != "dep-2" {
		t.Fatalf("unexpected Blocks: %v", tt.Blocks)
	}

	encoded := Encode(tt)
	if strings.Count(encoded, "RELATED-TO;RELTYPE=DEPENDS-ON") != 2 {
		t.Fatalf("expected 2 DEPENDS-ON lines, got:\n%s", encoded)
	}
	if !strings.Contains(encoded, "RELATED-TO:parent-1") {
		t.Fatalf("expected bare RELATED-TO for parent, got:\n%s", encoded)
	}
}

func TestExDateUnionSurvivesEncode(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VTODO\r\n" +
		"UID:rec-1\r\n" +
		"SUMMARY:Weekly sync\r\n" +
		"STATUS:NEEDS-ACTION\r\n" +
		"RRULE:FREQ=WEEKLY\r\n" +
		"EXDATE;VALUE=DATE:20260101\r\n" +
		"EXDATE;VALUE=DATE:20260108\r\n" +
		"END:VTODO\r\n" +
		"END:VCALENDAR\r\n"

	tt := mustDecode(t, raw)
	if len(tt.ExDates) != 2 {
		t.Fatalf("expected 2 EXDATE entries, got %d", len(tt.ExDates))
	}

	encoded := Encode(tt)
	if strings.Count(encoded, "EXDATE") != 2 {
		t.Fatalf("expected both EXDATE lines preserved, got:\n%s", encoded)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, err := Decode("not an ical document", "", "", "")
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
	if cferr.Code(err) != cferr.InvalidFormat {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestDecodeRequiresVTodo(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"
	_, err := Decode(raw, "", "", "")
	if err == nil || cferr.Code(err) != cferr.InvalidFormat {
		t.Fatalf("expected InvalidFormat for missing VTODO, got %v", err)
	}
}

package journal

import (
	"path/filepath"
	"testing"
)

func TestAppendAndPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "BEGIN:VCALENDAR..."}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-2", Body: "..."}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	pending := j.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}
	if pending[0].UID != "uid-1" || pending[1].UID != "uid-2" {
		t.Fatalf("unexpected replay order: %+v", pending)
	}
}

func TestSupersedingAppendCollapses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "v1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "v2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	pending := j.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected the second Put to collapse the first, got %d records", len(pending))
	}
	if pending[0].Body != "v2" {
		t.Fatalf("expected latest body to survive, got %q", pending[0].Body)
	}
}

func TestDeleteAfterPutCollapsesToDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "v1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.Append(Record{Kind: Delete, CalendarHref: "cal-1", UID: "uid-1", ETag: "etag-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	pending := j.Pending()
	if len(pending) != 1 || pending[0].Kind != Delete {
		t.Fatalf("expected a single collapsed Delete record, got %+v", pending)
	}
}

func TestDropRemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	j.Drop("cal-1", "uid-1")

	if len(j.Pending()) != 0 {
		t.Fatalf("expected no pending records after Drop, got %v", j.Pending())
	}
}

func TestReopenReplaysPendingRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "v1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	pending := reopened.Pending()
	if len(pending) != 1 || pending[0].UID != "uid-1" || pending[0].Body != "v1" {
		t.Fatalf("expected the pending Put to survive a reopen, got %+v", pending)
	}
}

func TestCompactionShrinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	for i := 0; i < compactionInterval+5; i++ {
		if _, err := j.Append(Record{Kind: Put, CalendarHref: "cal-1", UID: "uid-1", Body: "v"}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	pending := j.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected repeated puts to the same key to collapse to 1, got %d", len(pending))
	}

	onDisk, err := readAll(path)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(onDisk) >= compactionInterval {
		t.Fatalf("expected compaction to shrink the file below %d records, got %d", compactionInterval, len(onDisk))
	}
}

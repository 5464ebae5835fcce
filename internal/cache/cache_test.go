package cache

import (
	"path/filepath"
	"testing"

	"github.com/cfait/cfait/internal/task"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGetDeleteTask(t *testing.T) {
	c := openTestCache(t)
	tt := task.New()
	tt.UID = "abc-123"
	tt.Summary = "Buy milk"
	tt.CalendarHref = "https://caldav.example.com/cal/1/"

	if err := c.PutTask(tt.CalendarHref, tt); err != nil {
		t.Fatalf("PutTask: %v", err)
	}

	got, err := c.GetTask(tt.CalendarHref, tt.UID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Summary != "Buy milk" || got.UID != "abc-123" {
		t.Fatalf("unexpected task: %+v", got)
	}

	if err := c.DeleteTask(tt.CalendarHref, tt.UID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := c.GetTask(tt.CalendarHref, tt.UID); err == nil {
		t.Fatal("expected error reading deleted task")
	}
}

func TestPutGetRoundTripsHrefAndETag(t *testing.T) {
	c := openTestCache(t)
	tt := task.New()
	tt.UID = "abc-456"
	tt.CalendarHref = "https://caldav.example.com/cal/1/"
	tt.Href = "https://caldav.example.com/cal/1/abc-456.ics"
	tt.ETag = `"etag-9"`

	if err := c.PutTask(tt.CalendarHref, tt); err != nil {
		t.Fatalf("PutTask: %v", err)
	}
	got, err := c.GetTask(tt.CalendarHref, tt.UID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Href != tt.Href || got.ETag != tt.ETag {
		t.Fatalf("expected href/etag to round trip, got href=%q etag=%q", got.Href, got.ETag)
	}
}

func TestLocalCalendarUsesLocalDir(t *testing.T) {
	c := openTestCache(t)
	tt := task.New()
	tt.UID = "local-1"
	tt.CalendarHref = task.LocalCalendarHref

	if err := c.PutTask(tt.CalendarHref, tt); err != nil {
		t.Fatalf("PutTask: %v", err)
	}

	expected := filepath.Join(c.BaseDir(), localsDirName, "local-1.ics")
	if _, err := c.GetTask(tt.CalendarHref, tt.UID); err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if c.resourcePath(tt.CalendarHref, tt.UID) != expected {
		t.Fatalf("unexpected resource path: %s", c.resourcePath(tt.CalendarHref, tt.UID))
	}
}

func TestListTasksSkipsCorruptFiles(t *testing.T) {
	c := openTestCache(t)
	href := "https://caldav.example.com/cal/2/"

	tt := task.New()
	tt.UID = "good-1"
	tt.CalendarHref = href
	if err := c.PutTask(href, tt); err != nil {
		t.Fatalf("PutTask: %v", err)
	}

	if err := writeFileAtomically(c.resourcePath(href, "bad-1"), []byte("not ical")); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	tasks, err := c.ListTasks(href)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].UID != "good-1" {
		t.Fatalf("expected only the good task, got %v", tasks)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	c := openTestCache(t)
	m := newMeta()
	m.Calendars["https://caldav.example.com/cal/1/"] = CalendarMeta{
		DisplayName: "Work",
		CTag:        "ctag-1",
	}
	if err := c.SaveMeta(m); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}

	loaded, err := c.LoadMeta()
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if loaded.Calendars["https://caldav.example.com/cal/1/"].CTag != "ctag-1" {
		t.Fatalf("unexpected loaded meta: %+v", loaded.Calendars)
	}
}

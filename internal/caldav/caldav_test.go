package caldav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cfait/cfait/internal/cferr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDiscoverDirectCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPFIND" {
			t.Fatalf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">
  <D:response>
    <D:href>/calendars/tasks/</D:href>
    <D:propstat>
      <D:status>HTTP/1.1 200 OK</D:status>
      <D:prop>
        <D:resourcetype><C:calendar/></D:resourcetype>
        <D:displayname>Tasks</D:displayname>
        <CS:getctag>ctag-1</CS:getctag>
        <C:supported-calendar-component-set><C:comp name="VTODO"/></C:supported-calendar-component-set>
      </D:prop>
    </D:propstat>
  </D:response>
</D:multistatus>`))
	})

	cals, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cals) != 1 || cals[0].Href != "/calendars/tasks/" || cals[0].CTag != "ctag-1" {
		t.Fatalf("unexpected result: %+v", cals)
	}
}

func TestDiscoverFallsBackToPrincipalWalk(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body := string(mustBody(r))
		switch {
		case strings.Contains(r.Header.Get("Depth"), "0") && calls == 1:
			// direct-collection probe: not a calendar
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(`<D:multistatus xmlns:D="DAV:"><D:response><D:href>/</D:href>
				<D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop><D:resourcetype/></D:prop></D:propstat>
			</D:response></D:multistatus>`))
		case strings.Contains(body, "current-user-principal"):
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(`<D:multistatus xmlns:D="DAV:"><D:response><D:href>/principal/</D:href>
				<D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop>
				<D:current-user-principal><D:href>/principal/</D:href></D:current-user-principal>
				</D:prop></D:propstat></D:response></D:multistatus>`))
		case strings.Contains(body, "calendar-home-set"):
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(`<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
				<D:response><D:href>/principal/</D:href><D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop>
				<C:calendar-home-set><D:href>/calendars/</D:href></C:calendar-home-set>
				</D:prop></D:propstat></D:response></D:multistatus>`))
		default:
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">
  <D:response>
    <D:href>/calendars/tasks/</D:href>
    <D:propstat>
      <D:status>HTTP/1.1 200 OK</D:status>
      <D:prop>
        <D:resourcetype><C:calendar/></D:resourcetype>
        <D:displayname>Tasks</D:displayname>
        <CS:getctag>ctag-2</CS:getctag>
        <C:supported-calendar-component-set><C:comp name="VTODO"/></C:supported-calendar-component-set>
      </D:prop>
    </D:propstat>
  </D:response>
</D:multistatus>`))
		}
	})

	cals, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cals) != 1 || cals[0].Href != "/calendars/tasks/" {
		t.Fatalf("unexpected result: %+v", cals)
	}
}

func mustBody(r *http.Request) []byte {
	buf := make([]byte, 4096)
	n, _ := r.Body.Read(buf)
	return buf[:n]
}

func TestPutConflictMapsToPreconditionFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})

	_, err := c.Put(context.Background(), "/calendars/tasks/1.ics", "BEGIN:VCALENDAR...", "etag-old", "")
	if cferr.Code(err) != cferr.PreconditionFailed {
		t.Fatalf("expected PreconditionFailed, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := c.Get(context.Background(), "/calendars/tasks/missing.ics")
	if cferr.Code(err) != cferr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPutSuccessReturnsETag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusCreated)
	})

	etag, err := c.Put(context.Background(), "/calendars/tasks/1.ics", "BEGIN:VCALENDAR...", "", "*")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if etag != `"abc123"` {
		t.Fatalf("unexpected etag %q", etag)
	}
}

func TestListResources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "REPORT" {
			t.Fatalf("expected REPORT, got %s", r.Method)
		}
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/calendars/tasks/1.ics</D:href>
    <D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop><D:getetag>"e1"</D:getetag></D:prop></D:propstat>
  </D:response>
  <D:response>
    <D:href>/calendars/tasks/2.ics</D:href>
    <D:propstat><D:status>HTTP/1.1 200 OK</D:status><D:prop><D:getetag>"e2"</D:getetag></D:prop></D:propstat>
  </D:response>
</D:multistatus>`))
	})

	resources, err := c.ListResources(context.Background(), "/calendars/tasks/")
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 2 || resources[0].ETag != `"e1"` || resources[1].ETag != `"e2"` {
		t.Fatalf("unexpected resources: %+v", resources)
	}
}

func TestMultiGetEmptyHrefsSkipsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	out, err := c.MultiGet(context.Background(), "/calendars/tasks/", nil)
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	if out != nil || called {
		t.Fatalf("expected no request and nil result for empty hrefs")
	}
}

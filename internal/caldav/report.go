package caldav

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/cfait/cfait/internal/cferr"
)

// Resource is one member of a calendar-query REPORT listing: enough to
// diff against the cache's known ETags without fetching every body.
type Resource struct {
	Href string
	ETag string
}

// ListResources runs a calendar-query REPORT over calendarHref, returning
// every VTODO member's href and current ETag (spec.md §4.6's delta-pull
// source: the synchronizer diffs this against cached ETags to decide what
// to fetch).
func (c *Client) ListResources(ctx context.Context, calendarHref string) ([]Resource, error) {
	resp, err := c.report(ctx, calendarHref, calendarQueryVTodoBody, 1)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp)

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, cferr.Wrap(cferr.Transport, err, "decode calendar-query response")
	}

	resources := make([]Resource, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		p, ok := firstOKProp(r)
		if !ok {
			continue
		}
		resources = append(resources, Resource{Href: r.Href, ETag: p.GetETag})
	}
	return resources, nil
}

// FetchedResource is one member of a calendar-multiget REPORT response,
// with the full VCALENDAR body inline.
type FetchedResource struct {
	Href string
	ETag string
	Body string
}

// MultiGet fetches the bodies for a known set of hrefs in one REPORT round
// trip, used once ListResources has narrowed down which resources actually
// changed since the last sync.
func (c *Client) MultiGet(ctx context.Context, calendarHref string, hrefs []string) ([]FetchedResource, error) {
	if len(hrefs) == 0 {
		return nil, nil
	}
	resp, err := c.report(ctx, calendarHref, calendarMultigetBody(hrefs), 1)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp)

	var ms multigetMultistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, cferr.Wrap(cferr.Transport, err, "decode calendar-multiget response")
	}

	out := make([]FetchedResource, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		for _, ps := range r.Propstat {
			if !strings.Contains(ps.Status, "200") {
				continue
			}
			out = append(out, FetchedResource{
				Href: r.Href,
				ETag: ps.Prop.GetETag,
				Body: ps.Prop.CalendarData,
			})
			break
		}
	}
	return out, nil
}

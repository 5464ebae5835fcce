package caldav

import (
	"context"
	"strings"

	"github.com/cfait/cfait/internal/cferr"
)

// CalendarInfo is one discovered calendar collection.
type CalendarInfo struct {
	Href        string
	DisplayName string
	Color       string
	CTag        string
}

// Discover walks PROPFIND current-user-principal -> calendar-home-set ->
// Depth-1 collection listing, filtering to collections whose
// supported-calendar-component-set includes VTODO (spec.md §4.6).
//
// Before the principal walk, Discover probes the configured base path with
// a Depth-0 PROPFIND and, if that path is itself a calendar collection
// supporting VTODO, returns it alone without principal discovery, since
// some servers (notably Radicale) hand out the calendar collection itself
// as the configured URL. A failed probe falls through to the full walk.
func (c *Client) Discover(ctx context.Context) ([]CalendarInfo, error) {
	if info, ok, err := c.tryDirectCollection(ctx); err != nil {
		return nil, err
	} else if ok {
		return []CalendarInfo{info}, nil
	}

	principal, err := c.currentUserPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	homeSet, err := c.calendarHomeSet(ctx, principal)
	if err != nil {
		return nil, err
	}
	return c.listCalendars(ctx, homeSet)
}

// tryDirectCollection checks whether the client's configured base path is
// itself already a VTODO-capable calendar collection.
func (c *Client) tryDirectCollection(ctx context.Context) (CalendarInfo, bool, error) {
	ms, err := c.propfind(ctx, "", collectionsPropfindBody, 0)
	if err != nil {
		return CalendarInfo{}, false, nil // fall through to full discovery
	}
	for _, r := range ms.Responses {
		p, ok := firstOKProp(r)
		if !ok || p.ResourceType.Calendar == nil {
			continue
		}
		if !p.SupportedComponents.supports("VTODO") {
			continue
		}
		return CalendarInfo{
			Href:        r.Href,
			DisplayName: p.DisplayName,
			Color:       p.CalendarColor,
			CTag:        p.CTag,
		}, true, nil
	}
	return CalendarInfo{}, false, nil
}

func (c *Client) currentUserPrincipal(ctx context.Context) (string, error) {
	ms, err := c.propfind(ctx, "", principalPropfindBody, 0)
	if err != nil {
		return "", err
	}
	for _, r := range ms.Responses {
		if p, ok := firstOKProp(r); ok && p.CurrentUserPrincipal != nil {
			return p.CurrentUserPrincipal.Href, nil
		}
	}
	return "", cferr.New(cferr.NotFound, "server did not report a current-user-principal")
}

func (c *Client) calendarHomeSet(ctx context.Context, principalHref string) (string, error) {
	ms, err := c.propfind(ctx, principalHref, homeSetPropfindBody, 0)
	if err != nil {
		return "", err
	}
	for _, r := range ms.Responses {
		if p, ok := firstOKProp(r); ok && p.CalendarHomeSet != nil {
			return p.CalendarHomeSet.Href, nil
		}
	}
	return "", cferr.New(cferr.NotFound, "server did not report a calendar-home-set")
}

func (c *Client) listCalendars(ctx context.Context, homeSetHref string) ([]CalendarInfo, error) {
	ms, err := c.propfind(ctx, homeSetHref, collectionsPropfindBody, 1)
	if err != nil {
		return nil, err
	}

	var calendars []CalendarInfo
	for _, r := range ms.Responses {
		p, ok := firstOKProp(r)
		if !ok || p.ResourceType.Calendar == nil {
			continue
		}
		if !p.SupportedComponents.supports("VTODO") {
			continue
		}
		calendars = append(calendars, CalendarInfo{
			Href:        r.Href,
			DisplayName: displayNameOrLastSegment(p.DisplayName, r.Href),
			Color:       p.CalendarColor,
			CTag:        p.CTag,
		})
	}
	if len(calendars) == 0 {
		return nil, cferr.New(cferr.NotFound, "no VTODO-capable calendars found under calendar-home-set")
	}
	return calendars, nil
}

func displayNameOrLastSegment(name, href string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	trimmed := strings.TrimRight(href, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// FetchCTag retrieves a single calendar's current CTag (Depth 0 PROPFIND),
// the cheap check the synchronizer's Phase B uses to decide whether a
// calendar needs a full delta pull at all.
func (c *Client) FetchCTag(ctx context.Context, calendarHref string) (string, error) {
	ms, err := c.propfind(ctx, calendarHref, ctagPropfindBody, 0)
	if err != nil {
		return "", err
	}
	if len(ms.Responses) == 0 {
		return "", cferr.New(cferr.NotFound, "calendar not found: "+calendarHref)
	}
	p, ok := firstOKProp(ms.Responses[0])
	if !ok {
		return "", cferr.New(cferr.NotFound, "calendar not found: "+calendarHref)
	}
	return p.CTag, nil
}

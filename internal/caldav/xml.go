package caldav

import (
	"bytes"
	"encoding/xml"
)

// The request/response bodies below are the minimal subset of RFC 4791 /
// RFC 4918 this client speaks: PROPFIND for discovery and CTag, REPORT for
// listing and multiget. Namespaces are declared inline on each request
// rather than through a general-purpose WebDAV client library, since
// nothing in the retrieval pack ships one for Go (see DESIGN.md).

const (
	nsDAV      = "DAV:"
	nsCalDAV   = "urn:ietf:params:xml:ns:caldav"
	nsCalendar = "http://calendarserver.org/ns/"
)

// --- PROPFIND: current-user-principal ---

const principalPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop><D:current-user-principal/></D:prop>
</D:propfind>`

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href     string     `xml:"DAV: href"`
	Propstat []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Status string `xml:"DAV: status"`
	Prop   prop   `xml:"DAV: prop"`
}

type prop struct {
	CurrentUserPrincipal *hrefContainer `xml:"DAV: current-user-principal"`
	CalendarHomeSet      *hrefContainer `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`
	DisplayName          string         `xml:"DAV: displayname"`
	CTag                 string         `xml:"http://calendarserver.org/ns/ getctag"`
	GetETag              string         `xml:"DAV: getetag"`
	ResourceType         resourceType   `xml:"DAV: resourcetype"`
	SupportedComponents  *compSet       `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`
	CalendarColor        string         `xml:"http://apple.com/ns/ical/ calendar-color"`
}

type hrefContainer struct {
	Href string `xml:"DAV: href"`
}

type resourceType struct {
	Calendar *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

type compSet struct {
	Comp []comp `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

type comp struct {
	Name string `xml:"name,attr"`
}

func (c *compSet) supports(name string) bool {
	if c == nil {
		return false
	}
	for _, e := range c.Comp {
		if e.Name == name {
			return true
		}
	}
	return false
}

// --- PROPFIND: calendar-home-set ---

const homeSetPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-home-set/></D:prop>
</D:propfind>`

// --- PROPFIND Depth 1: collection listing ---

const collectionsPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/" xmlns:A="http://apple.com/ns/ical/">
  <D:prop>
    <D:resourcetype/>
    <D:displayname/>
    <CS:getctag/>
    <C:supported-calendar-component-set/>
    <A:calendar-color/>
  </D:prop>
</D:propfind>`

// --- PROPFIND Depth 0: CTag only ---

const ctagPropfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:CS="http://calendarserver.org/ns/">
  <D:prop><CS:getctag/></D:prop>
</D:propfind>`

// --- REPORT: calendar-query (list VTODO hrefs + etags) ---

const calendarQueryVTodoBody = `<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VTODO"/>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`

// --- REPORT: calendar-multiget (fetch bodies for known hrefs) ---

func calendarMultigetBody(hrefs []string) string {
	var b []byte
	b = append(b, []byte(`<?xml version="1.0" encoding="utf-8"?>`+"\n")...)
	b = append(b, []byte(`<C:calendar-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">`+"\n")...)
	b = append(b, []byte("  <D:prop><D:getetag/><C:calendar-data/></D:prop>\n")...)
	for _, h := range hrefs {
		b = append(b, []byte("  <D:href>"+xmlEscape(h)+"</D:href>\n")...)
	}
	b = append(b, []byte("</C:calendar-multiget>")...)
	return string(b)
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// multigetProp extends prop with the calendar-data payload.
type multigetProp struct {
	GetETag      string `xml:"DAV: getetag"`
	CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type multigetPropstat struct {
	Status string       `xml:"DAV: status"`
	Prop   multigetProp `xml:"DAV: prop"`
}

type multigetResponse struct {
	Href     string             `xml:"DAV: href"`
	Propstat []multigetPropstat `xml:"DAV: propstat"`
}

type multigetMultistatus struct {
	XMLName   xml.Name           `xml:"DAV: multistatus"`
	Responses []multigetResponse `xml:"DAV: response"`
}

// Package vtodo converts between the wire iCalendar VTODO representation
// (RFC 5545, with the RELATED-TO DEPENDS-ON reltype from RFC 9253) and the
// in-memory task.Task, preserving every property it does not itself
// understand so a round trip through Cfait never drops a line another
// client wrote.
package vtodo

import (
	"strconv"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/task"
)

// Decode parses raw iCalendar text containing exactly one VTODO into a
// task.Task. etag, href and calendarHref carry the resource's server
// identity, which the wire body itself does not contain.
//
// A cheap golang-ical parse runs first purely to reject structurally
// malformed input (unbalanced BEGIN/END, missing VCALENDAR) with the same
// general-purpose iCalendar grammar every other client uses; the actual
// property-by-property walk below is hand-rolled against the unfolded raw
// lines because RFC 5545 multi-valued properties (CATEGORIES, EXDATE,
// repeated RELATED-TO) and forward-compatible unknown-line preservation
// need line-exact control that a typed object model would only get in the
// way of — the same tension original_source/src/model.rs resolves by
// hand-walking the parsed event's raw property list instead of trusting a
// typed accessor for anything but the simplest scalar fields.
func Decode(raw, etag, href, calendarHref string) (*task.Task, error) {
	if _, err := ics.ParseCalendar(strings.NewReader(raw)); err != nil {
		return nil, cferr.Wrap(cferr.InvalidFormat, err, "not a valid iCalendar document")
	}

	logical, lineNo := unfold(raw)

	t := task.New()
	t.ETag = etag
	t.Href = href
	t.CalendarHref = calendarHref
	t.Tags = nil

	inTodo := false
	inTimezone := false
	sawTodo := false
	var tzLines []string
	var categories []string
	var relatedRaw []struct {
		reltype string
		uid     string
	}

	for i, line := range logical {
		name := propertyName(line)
		ln := lineNo[i]

		switch {
		case name == "BEGIN" && strings.EqualFold(strings.TrimSpace(afterColon(line)), "VTODO"):
			if sawTodo {
				return nil, cferr.New(cferr.InvalidFormat, "multiple VTODO components in one document").AtLine(ln)
			}
			inTodo = true
			sawTodo = true
			continue
		case name == "END" && strings.EqualFold(strings.TrimSpace(afterColon(line)), "VTODO"):
			inTodo = false
			continue
		case name == "BEGIN" && strings.EqualFold(strings.TrimSpace(afterColon(line)), "VTIMEZONE"):
			inTimezone = true
			tzLines = []string{line}
			continue
		case name == "END" && strings.EqualFold(strings.TrimSpace(afterColon(line)), "VTIMEZONE"):
			tzLines = append(tzLines, line)
			t.Unknown.Timezone = append(t.Unknown.Timezone, tzLines...)
			inTimezone = false
			tzLines = nil
			continue
		}

		if inTimezone {
			tzLines = append(tzLines, line)
			continue
		}
		if name == "BEGIN" || name == "END" || name == "VERSION" || name == "PRODID" || name == "CALSCALE" {
			continue
		}

		if !inTodo {
			t.Unknown.Calendar = append(t.Unknown.Calendar, line)
			continue
		}

		_, params, value := splitParams(line)
		var err error
		switch name {
		case "SUMMARY":
			t.Summary = unescapeText(value)
		case "DESCRIPTION":
			t.Description = unescapeText(value)
		case "STATUS":
			t.Status = task.ParseStatus(value)
		case "PRIORITY":
			p, perr := strconv.Atoi(strings.TrimSpace(value))
			if perr != nil {
				return nil, cferr.New(cferr.InvalidFormat, "invalid PRIORITY value "+value).AtLine(ln)
			}
			t.Priority = p
		case "PERCENT-COMPLETE":
			p, perr := strconv.Atoi(strings.TrimSpace(value))
			if perr != nil {
				return nil, cferr.New(cferr.InvalidFormat, "invalid PERCENT-COMPLETE value "+value).AtLine(ln)
			}
			t.PercentComplete = p
		case "DUE":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.Due = &d
		case "DTSTART":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.Start = &d
		case "COMPLETED":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.Completed = &d
		case "CREATED":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.Created = &d
		case "LAST-MODIFIED":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.LastModified = &d
		case "DTSTAMP":
			var d task.DateValue
			if d, err = parseDateValue(value, params, ln); err != nil {
				return nil, err
			}
			t.DTStamp = &d
		case "EXDATE":
			for _, v := range strings.Split(value, ",") {
				d, derr := parseDateValue(v, params, ln)
				if derr != nil {
					return nil, derr
				}
				t.ExDates = append(t.ExDates, d)
			}
		case "DURATION":
			d, ok := parseISODuration(value)
			if !ok {
				return nil, cferr.New(cferr.InvalidFormat, "invalid DURATION value "+value).AtLine(ln)
			}
			t.EstimatedDuration = d
		case "CATEGORIES":
			for _, v := range splitUnescapedComma(value) {
				v = strings.TrimSpace(unescapeText(v))
				if v != "" {
					categories = append(categories, v)
				}
			}
		case "RRULE":
			t.RRule = value
		case "UID":
			if strings.TrimSpace(value) != "" {
				t.UID = strings.TrimSpace(value)
			}
		case "RELATED-TO":
			reltype := "PARENT"
			if vs := paramValues(params, "RELTYPE"); len(vs) > 0 {
				reltype = strings.ToUpper(vs[0])
			}
			if reltype != "PARENT" && reltype != "DEPENDS-ON" {
				t.Unknown.Todo = append(t.Unknown.Todo, line)
				continue
			}
			relatedRaw = append(relatedRaw, struct {
				reltype string
				uid     string
			}{reltype, strings.TrimSpace(value)})
		default:
			t.Unknown.Todo = append(t.Unknown.Todo, line)
		}
	}

	if !sawTodo {
		return nil, cferr.New(cferr.InvalidFormat, "no VTODO component found")
	}

	t.Tags = dedupeTags(categories)
	for _, r := range relatedRaw {
		switch r.reltype {
		case "DEPENDS-ON":
			t.Blocks = append(t.Blocks, r.uid)
		default:
			t.ParentUID = r.uid
		}
	}

	return t, nil
}

// Encode renders t back to raw iCalendar text: one VCALENDAR containing one
// VTODO, folded at 75 octets, with every preserved unknown line spliced
// back into the bucket it came from.
func Encode(t *task.Task) string {
	var lines []string
	lines = append(lines, "BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//Cfait//Cfait Sync Engine//EN", "CALSCALE:GREGORIAN")
	lines = append(lines, t.Unknown.Calendar...)
	lines = append(lines, t.Unknown.Timezone...)

	lines = append(lines, "BEGIN:VTODO")
	lines = append(lines, "UID:"+t.UID)
	if t.Summary != "" {
		lines = append(lines, "SUMMARY:"+escapeText(t.Summary))
	}
	if t.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeText(t.Description))
	}
	lines = append(lines, "STATUS:"+t.Status.String())
	if t.Priority > 0 {
		lines = append(lines, "PRIORITY:"+strconv.Itoa(t.Priority))
	}
	if t.PercentComplete > 0 {
		lines = append(lines, "PERCENT-COMPLETE:"+strconv.Itoa(t.PercentComplete))
	}
	if t.Due != nil {
		v, p := formatDateValue(*t.Due)
		lines = append(lines, "DUE"+p+":"+v)
	}
	if t.Start != nil {
		v, p := formatDateValue(*t.Start)
		lines = append(lines, "DTSTART"+p+":"+v)
	}
	if t.Completed != nil {
		v, p := formatDateValue(*t.Completed)
		lines = append(lines, "COMPLETED"+p+":"+v)
	}
	if t.EstimatedDuration != 0 {
		lines = append(lines, "DURATION:"+formatISODuration(t.EstimatedDuration))
	}
	if len(t.Tags) > 0 {
		escaped := make([]string, len(t.Tags))
		for i, c := range t.Tags {
			escaped[i] = escapeText(c)
		}
		lines = append(lines, "CATEGORIES:"+strings.Join(escaped, ","))
	}
	if t.RRule != "" {
		lines = append(lines, "RRULE:"+t.RRule)
	}
	for _, ex := range dedupeExDates(t.ExDates) {
		v, p := formatDateValue(ex)
		lines = append(lines, "EXDATE"+p+":"+v)
	}
	if t.ParentUID != "" {
		lines = append(lines, "RELATED-TO:"+t.ParentUID)
	}
	for _, uid := range t.Blocks {
		lines = append(lines, "RELATED-TO;RELTYPE=DEPENDS-ON:"+uid)
	}
	if t.Created != nil {
		v, p := formatDateValue(*t.Created)
		lines = append(lines, "CREATED"+p+":"+v)
	}
	if t.LastModified != nil {
		v, p := formatDateValue(*t.LastModified)
		lines = append(lines, "LAST-MODIFIED"+p+":"+v)
	}
	if t.DTStamp != nil {
		v, p := formatDateValue(*t.DTStamp)
		lines = append(lines, "DTSTAMP"+p+":"+v)
	}
	lines = append(lines, t.Unknown.Todo...)
	lines = append(lines, "END:VTODO")
	lines = append(lines, "END:VCALENDAR")

	return foldAll(lines)
}

func afterColon(line string) string {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return line[i+1:]
	}
	return ""
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, c := range tags {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// dedupeExDates collapses exception dates that resolve to the same instant,
// which is how a local addition and a remote addition of the same
// exception are reconciled into a single EXDATE line on the next encode.
func dedupeExDates(dates []task.DateValue) []task.DateValue {
	seen := make(map[int64]bool, len(dates))
	var out []task.DateValue
	for _, d := range dates {
		key := d.Time.UTC().Unix()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// escapeText applies RFC 5545 §3.3.11 TEXT escaping.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\n", `\n`)
	return r.Replace(s)
}

// unescapeText reverses escapeText.
func unescapeText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n', 'N':
				b.WriteByte('\n')
			case '\\':
				b.WriteByte('\\')
			case ';':
				b.WriteByte(';')
			case ',':
				b.WriteByte(',')
			default:
				b.WriteByte(s[i+1])
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// splitUnescapedComma splits a multi-value TEXT property on commas that are
// not themselves escaped, so a tag containing a literal comma ("\,") is not
// split in two.
func splitUnescapedComma(s string) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if s[i] == ',' {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(s[i])
	}
	out = append(out, cur.String())
	return out
}

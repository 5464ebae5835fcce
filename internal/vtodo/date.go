package vtodo

import (
	"strings"
	"time"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/task"
)

const (
	dateLayout       = "20060102"
	dateTimeLayoutZ  = "20060102T150405Z"
	dateTimeLayout   = "20060102T150405"
	durationCategory = "DURATION"
)

// parseDateValue parses a DATE or DATE-TIME property value per spec.md
// §4.1: DATE is exactly 8 digits (YYYYMMDD); DATE-TIME carries a "T" and
// optionally a trailing "Z" or a TZID parameter. The original form is
// remembered so Encode can emit the same shape back.
func parseDateValue(value string, params string, line int) (task.DateValue, error) {
	value = strings.TrimSpace(value)
	tzid := ""
	if vs := paramValues(params, "TZID"); len(vs) > 0 {
		tzid = vs[0]
	}

	if len(value) == 8 && !strings.Contains(value, "T") {
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return task.DateValue{}, cferr.New(cferr.InvalidFormat, "invalid DATE value "+value).AtLine(line)
		}
		return task.DateValue{Time: t, DateOnly: true}, nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.ParseInLocation(dateTimeLayoutZ, value, time.UTC)
		if err != nil {
			return task.DateValue{}, cferr.New(cferr.InvalidFormat, "invalid DATE-TIME value "+value).AtLine(line)
		}
		return task.DateValue{Time: t}, nil
	}

	loc := time.Local
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(dateTimeLayout, value, loc)
	if err != nil {
		return task.DateValue{}, cferr.New(cferr.InvalidFormat, "invalid DATE-TIME value "+value).AtLine(line)
	}
	return task.DateValue{Time: t, TZID: tzid}, nil
}

// formatDateValue renders a DateValue back into the same DATE or DATE-TIME
// shape it was parsed from, with parameters as a semicolon-prefixed string
// ready to append to a property name. A floating DATE-TIME (no "Z", no
// TZID) is the exception: DateValue does not record that it was floating,
// so it is emitted in UTC with a trailing "Z".
func formatDateValue(d task.DateValue) (value string, params string) {
	if d.DateOnly {
		return d.Time.Format(dateLayout), ";VALUE=DATE"
	}
	if d.TZID != "" {
		return d.Time.Format(dateTimeLayout), ";TZID=" + d.TZID
	}
	return d.Time.UTC().Format(dateTimeLayoutZ), ""
}

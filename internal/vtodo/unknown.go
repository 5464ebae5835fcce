package vtodo

// recognized lists the VTODO property names the codec maps onto Task
// fields; anything else is preserved verbatim (spec.md §9). Decode does the
// mapping with its own switch and does not read this table; IsRecognized
// is the only reader.
var recognized = map[string]bool{
	"SUMMARY":          true,
	"DESCRIPTION":      true,
	"STATUS":           true,
	"PRIORITY":         true,
	"PERCENT-COMPLETE": true,
	"DUE":              true,
	"DTSTART":          true,
	"COMPLETED":        true,
	"DURATION":         true,
	"CATEGORIES":       true,
	"RRULE":            true,
	"EXDATE":           true,
	"RELATED-TO":       true,
	"UID":              true,
	"CREATED":          true,
	"LAST-MODIFIED":    true,
	"DTSTAMP":          true,
}

// IsRecognized reports whether name is one of the VTODO properties the
// codec maps onto a Task field, per the centralized table above.
func IsRecognized(name string) bool { return recognized[name] }

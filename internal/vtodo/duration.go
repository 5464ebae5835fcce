package vtodo

import (
	"strconv"
	"strings"
	"time"
)

// parseISODuration parses the RFC 5545 DURATION value form, e.g. "PT15M",
// "P1DT2H", "P3D". Only the subset Cfait tasks actually use (days, hours,
// minutes, seconds) is supported; weeks ("P2W") are also accepted since
// smartinput can produce them.
func parseISODuration(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	neg := false
	if strings.HasPrefix(v, "-") {
		neg = true
		v = v[1:]
	} else if strings.HasPrefix(v, "+") {
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	if strings.HasSuffix(v, "W") {
		n, err := strconv.Atoi(strings.TrimSuffix(v, "W"))
		if err != nil {
			return 0, false
		}
		d := time.Duration(n) * 7 * 24 * time.Hour
		if neg {
			d = -d
		}
		return d, true
	}

	datePart, timePart, hasTime := strings.Cut(v, "T")

	var total time.Duration
	if datePart != "" {
		n, unit, rest, ok := readNum(datePart)
		for ok {
			if unit != 'D' {
				return 0, false
			}
			total += time.Duration(n) * 24 * time.Hour
			if rest == "" {
				break
			}
			n, unit, rest, ok = readNum(rest)
		}
	}
	if hasTime {
		rest := timePart
		for rest != "" {
			n, unit, r, ok := readNum(rest)
			if !ok {
				return 0, false
			}
			switch unit {
			case 'H':
				total += time.Duration(n) * time.Hour
			case 'M':
				total += time.Duration(n) * time.Minute
			case 'S':
				total += time.Duration(n) * time.Second
			default:
				return 0, false
			}
			rest = r
		}
	}
	if neg {
		total = -total
	}
	return total, true
}

// readNum reads a leading decimal number followed by a single unit letter.
func readNum(s string) (n int, unit byte, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(s) {
		return 0, 0, "", false
	}
	v, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, 0, "", false
	}
	return v, s[i], s[i+1:], true
}

// formatISODuration renders d as an RFC 5545 DURATION value.
func formatISODuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
	}

	if d > 0 {
		b.WriteByte('T')
		hours := d / time.Hour
		d -= hours * time.Hour
		if hours > 0 {
			b.WriteString(strconv.FormatInt(int64(hours), 10))
			b.WriteByte('H')
		}
		minutes := d / time.Minute
		d -= minutes * time.Minute
		if minutes > 0 {
			b.WriteString(strconv.FormatInt(int64(minutes), 10))
			b.WriteByte('M')
		}
		seconds := d / time.Second
		if seconds > 0 {
			b.WriteString(strconv.FormatInt(int64(seconds), 10))
			b.WriteByte('S')
		}
	}
	return b.String()
}

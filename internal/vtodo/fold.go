package vtodo

import "strings"

const foldWidth = 75 // octets per RFC 5545 §3.1, excluding the line break itself

// unfold splits raw calendar text into logical lines, undoing RFC 5545 line
// folding (a CRLF or LF immediately followed by a space or tab continues the
// previous logical line). It also returns, for each logical line, the
// 1-based line number of its first physical line, so decode errors can
// report a useful location (spec.md §4.1: "returns an InvalidFormat error
// with line number").
func unfold(raw string) (logical []string, lineNo []int) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	physical := strings.Split(raw, "\n")

	var cur strings.Builder
	curLine := 0
	has := false

	flush := func() {
		if has {
			logical = append(logical, cur.String())
			lineNo = append(lineNo, curLine)
			cur.Reset()
			has = false
		}
	}

	for i, p := range physical {
		physNo := i + 1
		if len(p) > 0 && (p[0] == ' ' || p[0] == '\t') && has {
			cur.WriteString(p[1:])
			continue
		}
		flush()
		if p == "" && i == len(physical)-1 {
			// trailing blank line from a final newline, not a logical line
			continue
		}
		cur.WriteString(p)
		curLine = physNo
		has = true
	}
	flush()
	return logical, lineNo
}

// fold wraps a single logical content line to foldWidth-octet physical
// lines, joined with CRLF + a single leading space, per RFC 5545 §3.1.
func fold(line string) string {
	b := []byte(line)
	if len(b) <= foldWidth {
		return line
	}
	var out strings.Builder
	out.Write(b[:foldWidth])
	rest := b[foldWidth:]
	for len(rest) > 0 {
		n := foldWidth - 1 // continuation lines lose one octet to the leading space
		if n > len(rest) {
			n = len(rest)
		}
		out.WriteString("\r\n ")
		out.Write(rest[:n])
		rest = rest[n:]
	}
	return out.String()
}

// foldAll folds and CRLF-joins a slice of logical lines into emittable text.
func foldAll(lines []string) string {
	var out strings.Builder
	for _, l := range lines {
		out.WriteString(fold(l))
		out.WriteString("\r\n")
	}
	return out.String()
}

// propertyName extracts the property name from a logical content line,
// ignoring parameters, e.g. "RELATED-TO;RELTYPE=PARENT:xyz" -> "RELATED-TO".
func propertyName(line string) string {
	end := len(line)
	for i, c := range line {
		if c == ';' || c == ':' {
			end = i
			break
		}
	}
	return strings.ToUpper(strings.TrimSpace(line[:end]))
}

// splitParams splits a content line into (name, params, value). params
// retains its leading semicolons verbatim so it can be re-emitted unchanged.
func splitParams(line string) (name, params, value string) {
	colon := indexUnquoted(line, ':')
	if colon < 0 {
		return strings.ToUpper(line), "", ""
	}
	head := line[:colon]
	value = line[colon+1:]
	if semi := strings.IndexByte(head, ';'); semi >= 0 {
		name = strings.ToUpper(head[:semi])
		params = head[semi:]
	} else {
		name = strings.ToUpper(head)
	}
	return name, params, value
}

// indexUnquoted finds the first occurrence of c outside a quoted parameter
// value ("..."), since a DQUOTE-wrapped param value may itself contain ':'.
func indexUnquoted(s string, c byte) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case c:
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// paramValues returns the values of parameter name within params (the
// semicolon-prefixed parameter tail returned by splitParams).
func paramValues(params, name string) []string {
	if params == "" {
		return nil
	}
	name = strings.ToUpper(name)
	var out []string
	for _, part := range strings.Split(strings.TrimPrefix(params, ";"), ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || strings.ToUpper(key) != name {
			continue
		}
		val = strings.Trim(val, `"`)
		out = append(out, strings.Split(val, ",")...)
	}
	return out
}

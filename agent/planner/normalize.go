package planner

import "strings"

// normalizeJSON repairs the usual slips in model-written JSON: comments,
// single-quoted strings, unquoted object keys and trailing commas. Text
// inside double-quoted strings is left alone.
func normalizeJSON(s string) string {
	return dropTrailingCommas(quoteLiterals(s))
}

func quoteLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	// last significant byte written, used to spot bare keys
	var last byte
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			end, _ := stringEnd(s, i)
			b.WriteString(s[i:end])
			last = '"'
			i = end
		case c == '\'':
			end, closed := stringEnd(s, i)
			inner := s[i+1 : end]
			if closed {
				inner = s[i+1 : end-1]
			}
			b.WriteByte('"')
			writeSingleQuoted(&b, inner)
			b.WriteByte('"')
			last = '"'
			i = end
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(s)
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if k := strings.Index(s[i+2:], "*/"); k >= 0 {
				i += k + 4
			} else {
				i = len(s)
			}
		case isIdentStart(c) && (last == '{' || last == ','):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteString(`"` + s[i:j] + `"`)
			} else {
				b.WriteString(s[i:j])
			}
			last = 'a'
			i = j
		default:
			b.WriteByte(c)
			if !isSpace(c) {
				last = c
			}
			i++
		}
	}
	return b.String()
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c == '"' {
			end, _ := stringEnd(s, i)
			b.WriteString(s[i:end])
			i = end
			continue
		}
		if c == ',' {
			k := i + 1
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && (s[k] == '}' || s[k] == ']') {
				i++
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// stringEnd returns the index just past the string literal opened at
// s[start]. closed is false when the literal runs to the end of s.
func stringEnd(s string, start int) (end int, closed bool) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1, true
		}
	}
	return len(s), false
}

func writeSingleQuoted(b *strings.Builder, inner string) {
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\' && i+1 < len(inner) && inner[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(inner):
			b.WriteByte(c)
			b.WriteByte(inner[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

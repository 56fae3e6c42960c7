package compose

import (
	"fmt"
	"strings"

	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Q composes a fragment from a template with "?" markers, one per value.
// Markers inside quoted strings, quoted identifiers, $tag$ bodies and
// comments are left alone, and "??" produces a literal "?". Backslash escapes
// are not recognised: pass a literal such as 'a\'?' as a value or through Raw.
// It panics with a composition *sqlerr.Error when the marker count differs
// from len(values).
func Q(template string, values ...any) SQL {
	chunks := splitTemplate(template)
	if len(chunks) != len(values)+1 {
		panic(sqlerr.Composition("template", fmt.Errorf("%w: %d markers for %d values in %q",
			sqlerr.ErrArgumentMismatch, len(chunks)-1, len(values), template)))
	}
	return Compose(chunks, values...)
}

// splitTemplate cuts the template at every bare "?" marker.
func splitTemplate(template string) []string {
	var (
		chunks []string
		cur    strings.Builder
		quote  byte // current quote char, 0 when outside quotes
	)

	for i := 0; i < len(template); i++ {
		c := template[i]

		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			cur.WriteByte(c)
		case c == '-' && i+1 < len(template) && template[i+1] == '-':
			end := strings.IndexByte(template[i:], '\n')
			if end < 0 {
				end = len(template) - i
			} else {
				end++
			}
			cur.WriteString(template[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(template) && template[i+1] == '*':
			end := strings.Index(template[i+2:], "*/")
			if end < 0 {
				end = len(template) - i
			} else {
				end += 4
			}
			cur.WriteString(template[i : i+end])
			i += end - 1
		case c == '$':
			tag, ok := dollarTag(template[i:])
			if !ok {
				cur.WriteByte(c)
				continue
			}
			end := strings.Index(template[i+len(tag):], tag)
			if end < 0 {
				end = len(template) - i
			} else {
				end += 2 * len(tag)
			}
			cur.WriteString(template[i : i+end])
			i += end - 1
		case c == '?' && i+1 < len(template) && template[i+1] == '?':
			cur.WriteByte('?')
			i++
		case c == '?':
			chunks = append(chunks, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	return append(chunks, cur.String())
}

// dollarTag returns the opening "$tag$" at the start of s. Positional
// parameters such as "$1" are not tags.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && j > 1:
		default:
			return "", false
		}
	}
	return "", false
}

// Package codec moves structured values across the host boundary.
//
// Outbound, Literal renders Go values as dialect literals so caller data can
// be embedded in a call body without string splicing. Inbound, the host side
// serialises results with a small encoder shipped as a fragment (Source),
// because the host runtime cannot be assumed to provide JSON. That encoder
// escapes only double quotes, so Decode repairs raw control characters and
// literal backslashes before handing the text to encoding/json. A string that
// ends in a backslash is ambiguous on the wire and does not round-trip.
//
// The host encoder's rules:
//   - undefined is omitted from objects and becomes null inside arrays
//   - NaN and the infinities become null
//   - strings are quoted with embedded double quotes escaped, nothing else
//   - values of any other type become {}
//   - object key order is whatever for-in enumeration yields on the host
package codec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed json.jsx
var source string

// Source returns the dialect definition of stringify(data). Loading it also
// installs it as JSON.stringify.
func Source() string { return source }

// Literal renders v as a dialect expression. Strings are fully escaped,
// including U+2028 and U+2029, so the result is safe inside any body.
func Literal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode literal: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses text produced by the host encoder into v.
func Decode(text string, v any) error {
	repaired := escapeControlInStrings(strings.TrimSpace(text))
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode host result: %w", err)
	}
	return nil
}

// escapeControlInStrings escapes raw control characters and literal
// backslashes that appear inside string literals. The host encoder emits them
// verbatim; its only escape sequence is \".
func escapeControlInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == '"':
			b.WriteString(`\"`)
			i++
		case c == '\\':
			b.WriteString(`\\`)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

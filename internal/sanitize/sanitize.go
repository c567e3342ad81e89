// Package sanitize strips text down to printable characters before it is
// embedded into generated artifacts.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Text removes every rune that is not printable. Control characters
// (including newlines and tabs), format characters, unassigned code points,
// non-ASCII spaces and invalid UTF-8 bytes are dropped; the ASCII space is kept.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slug is the file-name form of an agent or workflow name: sanitized,
// lowercased, spaces replaced with underscores.
func Slug(name string) string {
	lower := cases.Lower(language.Und).String(Text(name))
	return strings.ReplaceAll(lower, " ", "_")
}

// FileName is Slug made safe as a single path element: path separators
// become underscores and leading dots are dropped. An empty result falls
// back to "unnamed".
func FileName(name string) string {
	s := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, Slug(name))
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Texts sanitizes every element and always returns a non-nil slice.
func Texts(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, Text(s))
	}
	return out
}

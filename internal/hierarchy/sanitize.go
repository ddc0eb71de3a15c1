package hierarchy

import "strings"

// illegal characters in filenames across the platforms we care about,
// plus the path separators themselves.
const illegalChars = `<>:"/\|?*`

// Sanitize turns a raw key value into a filesystem-safe path segment:
// illegal characters and control characters are removed, leading and
// trailing dots and spaces trimmed, and the result truncated to max
// runes. An empty result becomes "untitled".
func Sanitize(raw string, max int) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < 0x20 || strings.ContainsRune(illegalChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.Trim(b.String(), ". ")
	if s == "" {
		return "untitled"
	}
	runes := []rune(s)
	if len(runes) > max {
		s = string(runes[:max])
	}
	return s
}

// CleanURI strips the scheme from a URI for comparison and display.
func CleanURI(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[i+3:]
	}
	return uri
}

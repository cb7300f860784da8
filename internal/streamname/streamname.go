// Package streamname implements stream-name normalization.
package streamname

import "strings"

func isAllowed(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == ':'
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// Format replaces each maximal run of characters outside
// [A-Za-z0-9_:] with a single underscore. When toLower is set and the
// input contains any ASCII uppercase letter, the result is
// additionally ASCII-lowercased. If nothing changes, the original
// string is returned unmodified (no reallocation).
func Format(s string, toLower bool) string {
	changed := false
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if isAllowed(r) {
			b.WriteRune(r)
			inRun = false
		} else {
			changed = true
			if !inRun {
				b.WriteByte('_')
				inRun = true
			}
		}
	}
	out := s
	if changed {
		out = b.String()
	}
	if toLower && hasUpper(out) {
		return strings.ToLower(out)
	}
	return out
}

// Package title derives the canonical search key from a raw export title.
package title

import (
	"regexp"
	"strings"
)

var (
	hookSuffix   = regexp.MustCompile(`(?i)_hook_\d+`)
	parenthetics = regexp.MustCompile(`\(.*?\)`)
	seasonMarker = regexp.MustCompile(`(?i)(season|saison)\s+\d+`)
)

// Normalize strips tagging suffixes, parenthetical notes, subtitle segments
// and season markers from a raw title, then trims it.
//
// The steps are re-applied until the result stops changing, so
// Normalize(Normalize(s)) == Normalize(s) for every input.
func Normalize(raw string) string {
	out := clean(raw)
	for {
		next := clean(out)
		if next == out {
			return out
		}
		out = next
	}
}

func clean(s string) string {
	s = hookSuffix.ReplaceAllString(s, "")
	s = parenthetics.ReplaceAllString(s, "")
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = seasonMarker.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

package title

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hook suffix, subtitle and parenthetical", "Stranger Things: Chapter One _hook_42 (HDR)", "Stranger Things"},
		{"french season marker", "Le Bureau des Légendes Saison 3", "Le Bureau des Légendes"},
		{"english season marker", "The Crown Season 2", "The Crown"},
		{"season marker any case", "Dark SEASON 1", "Dark"},
		{"saison marker any case", "Lupin sAiSoN 2", "Lupin"},
		{"hook suffix upper case", "Narcos_HOOK_17", "Narcos"},
		{"hook suffix in the middle", "Dark_hook_3 Matter", "Dark Matter"},
		{"every hook suffix", "A_hook_1_hook_22", "A"},
		{"every parenthetical group", "Movie (2019) (Director's Cut)", "Movie"},
		{"parenthetical keeps surrounding text", "Roma (B&W) Remastered", "Roma  Remastered"},
		{"first colon only", "Black Mirror: Bandersnatch: Part 2", "Black Mirror"},
		{"season before colon", "Money Heist Season 3: Episode 4", "Money Heist"},
		{"plain title", "Inception", "Inception"},
		{"whitespace", "   Inception  ", "Inception"},
		{"empty", "", ""},
		{"only noise", "(Trailer)", ""},
		{"colon first", ": Episode 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Stranger Things: Chapter One _hook_42 (HDR)",
		"Le Bureau des Légendes Saison 3",
		"_ho(x)ok_12 Title",
		"Seas(1)on 4 Show",
		"Foo Season 1 Season 2",
		"((nested)) title",
		"Season Season 1 1",
		"   ",
		"Plain",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_RemovesMarkers(t *testing.T) {
	// Normalized output never contains a marker the rules strip.
	inputs := []string{
		"x _hook_9 (a) y: z Season 10",
		"Saison 4 (VF) Les Revenants",
		"_hook_1(_hook_2)",
	}

	for _, in := range inputs {
		out := Normalize(in)
		assert.False(t, hookSuffix.MatchString(out), "hook left in %q", out)
		assert.False(t, parenthetics.MatchString(out), "parenthetical left in %q", out)
		assert.False(t, seasonMarker.MatchString(out), "season marker left in %q", out)
		assert.False(t, strings.Contains(out, ":"), "colon left in %q", out)
		assert.Equal(t, strings.TrimSpace(out), out)
	}
}

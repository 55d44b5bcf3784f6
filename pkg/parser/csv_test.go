package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `Profile Name;Start Time;Duration;Attributes;Title;Supplemental Video Type;Device Type;Bookmark;Latest Bookmark;Country
Alice;2024-03-01 20:15:00;00:45:12;;Dark: Season 1: Secrets (Episode 1);;Chrome PC (Cadmium);00:45:12;00:45:12;FR (France)
Bob;2024-03-02 21:00:00;00:02:03;Autoplayed: user action: None;;HOOK;Netflix Windows App;00:02:03;Not latest view;DE (Germany)
`

func TestParseCSV_Export(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(sampleExport))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2024-03-01 20:15:00", first.StartTime)
	require.NotNil(t, first.ProfileName)
	assert.Equal(t, "Alice", *first.ProfileName)
	require.NotNil(t, first.Title)
	assert.Equal(t, "Dark: Season 1: Secrets (Episode 1)", *first.Title)
	require.NotNil(t, first.Attributes)
	assert.Equal(t, "", *first.Attributes)
	assert.Equal(t, "FR (France)", *first.Country)

	second := rows[1]
	assert.Equal(t, "Autoplayed: user action: None", *second.Attributes)
	assert.Equal(t, "HOOK", *second.SupplementalVideoType)
	assert.Equal(t, "Not latest view", *second.LatestBookmark)
}

func TestParseCSV_RelaxedInput(t *testing.T) {
	input := "\ufeffStart Time ; Profile Name;Title;Country\n" +
		"\n" +
		"  2024-01-01 ;  Alice  ; The \"Best\" Show\n" +
		"   \n" +
		"2024-01-02;Bob;\"Quoted; Title\";US;extra;columns\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-01-01", rows[0].StartTime)
	assert.Equal(t, "Alice", *rows[0].ProfileName)
	assert.Equal(t, `The "Best" Show`, *rows[0].Title)
	assert.Nil(t, rows[0].Country, "short row leaves missing column nil")

	assert.Equal(t, "Quoted; Title", *rows[1].Title)
	assert.Equal(t, "US", *rows[1].Country)
	assert.Nil(t, rows[1].DeviceType, "column absent from header stays nil")
}

func TestParseCSV_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyInput},
		{"blank lines", "\n\n   \n", ErrEmptyInput},
		{"header only", "Start Time;Title\n", ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseCSV(strings.NewReader(tt.input))
			assert.Nil(t, rows)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Start Time":              "startTime",
		"  Profile Name  ":        "profileName",
		"Supplemental Video Type": "supplementalVideoType",
		"Title":                   "title",
		"device   type":           "deviceType",
		"Country":                 "country",
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

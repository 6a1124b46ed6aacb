package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/entsync/core"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Paris", "Paris"},
		{"trims", "  Paris \n", "Paris"},
		{"collapses whitespace", "New \t  York\nCity", "New York City"},
		{"strips tags", "<b>Alice</b> <i>Smith</i>", "Alice Smith"},
		{"decodes entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"drops script bodies", "Bob<script>alert(1)</script>", "Bob"},
		{"drops control characters", "Lon\x00don\x07", "Lon don"},
		{"drops invalid utf8", "Par\xffis", "Paris"},
		{"keeps less-than text", "a < b", "a < b"},
		{"keeps unicode", "Zürich", "Zürich"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize_Unsanitizable(t *testing.T) {
	for _, input := range []string{"", "   ", "<br/>", "<script>x</script>", "\x00\x01"} {
		_, err := Sanitize(input)
		assert.ErrorIs(t, err, core.ErrUnsanitizable, "input %q", input)
	}
}

func TestSanitize_CapsLength(t *testing.T) {
	got, err := Sanitize(strings.Repeat("é", MaxValueLength+10))
	require.NoError(t, err)
	assert.Equal(t, MaxValueLength, len([]rune(got)))
}

func TestSanitizeValues(t *testing.T) {
	clean, rejected := SanitizeValues([]string{"Alice", " Alice ", "<p></p>", "Bob"})
	assert.Equal(t, []string{"Alice", "Bob"}, clean)
	assert.Equal(t, []string{"<p></p>"}, rejected)
}

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_setting = "value"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[transfers]\nparalel_uploads = 4\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "parallel_uploads"`)
}

func TestLoad_UnknownKey_TypoInAuth(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
apikey = "k"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_UnknownKey_MisspelledSection(t *testing.T) {
	path := writeTestConfig(t, `
[loging]
log_level = "debug"
log_format = "json"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean [logging]")
	assert.Equal(t, 1, strings.Count(err.Error(), "loging"), "an unknown table is reported once")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
completely_unrelated_key = true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"apikey", "api_key", 1},
		{"paralel_uploads", "parallel_uploads", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "network", closestMatch("netwrk", knownSections))
	assert.Empty(t, closestMatch("zzzzzzzzzz", knownSections))
}

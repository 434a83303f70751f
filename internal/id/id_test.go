package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)

	got, err := Parse(a)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"3F2A9C1E-0000-4000-8000-000000000001", "3f2a9c1e-0000-4000-8000-000000000001"},
		{"  3f2a9c1e-0000-4000-8000-000000000001 ", "3f2a9c1e-0000-4000-8000-000000000001"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestParse_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"2025-01-001",
	}
	for _, input := range badInputs {
		_, err := Parse(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestParseSet(t *testing.T) {
	a := "3f2a9c1e-0000-4000-8000-000000000001"
	b := "3f2a9c1e-0000-4000-8000-000000000002"

	got, err := ParseSet([]string{b, a, "3F2A9C1E-0000-4000-8000-000000000002"})
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, got)

	got, err = ParseSet(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseSet([]string{a, "bogus"})
	assert.Error(t, err)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "3f2a9c1e", Short("3f2a9c1e-0000-4000-8000-000000000001"))
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "", Short(""))
}

package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "beacon/pkg/domain-errors"
)

// TestParseHandle_Invariants validates the parsing invariant:
// "handles are lower-case, 2-64 characters, starting with a letter or digit"
func TestParseHandle_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseHandle("   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("strips at sign and lowercases", func(t *testing.T) {
		h, err := ParseHandle(" @Alice ")
		require.NoError(t, err)
		assert.Equal(t, Handle("alice"), h)
		assert.Equal(t, "@alice", h.Display())
	})

	t.Run("accepts separators after first character", func(t *testing.T) {
		h, err := ParseHandle("data_eng-42")
		require.NoError(t, err)
		assert.Equal(t, "data_eng-42", h.String())
	})
}

func TestParseHandle_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"single character", "a"},
		{"leading dash", "-alice"},
		{"leading underscore", "_alice"},
		{"path traversal", "../etc"},
		{"whitespace inside", "al ice"},
		{"sql injection", "'; DROP TABLE nodes;--"},
		{"too long", strings.Repeat("a", 65)},
		{"double at", "@@alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHandle(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("Recruiter")
	require.NoError(t, err)
	assert.Equal(t, TierRecruiter, tier)

	_, err = ParseTier("platinum")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.False(t, Tier("bogus").IsValid())
}

func TestParseTags(t *testing.T) {
	t.Run("normalizes", func(t *testing.T) {
		tags, err := ParseTags([]string{"Rust ", "go", "GO", ""})
		require.NoError(t, err)
		assert.Equal(t, Tags{"go", "rust"}, tags)
		assert.True(t, tags.Contains("rust"))
		assert.False(t, tags.Contains("python"))
	})

	t.Run("intersects in sorted order", func(t *testing.T) {
		tags := Tags{"backend", "go", "rust"}
		assert.Equal(t, Tags{"go", "rust"}, tags.Intersect(Tags{"go", "python", "rust"}))
		assert.Empty(t, tags.Intersect(Tags{"java"}))
	})

	t.Run("rejects oversized tag", func(t *testing.T) {
		_, err := ParseTags([]string{strings.Repeat("x", 65)})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

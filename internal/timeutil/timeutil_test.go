package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("parses Z suffix as UTC", func(t *testing.T) {
		got, ok := Parse("2024-03-01T12:30:00Z")
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), got)
	})

	t.Run("converts explicit offset to UTC", func(t *testing.T) {
		got, ok := Parse("2024-03-01T21:30:00+09:00")
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), got)
	})

	t.Run("treats offset-free input as UTC", func(t *testing.T) {
		got, ok := Parse("2024-03-01T12:30:00")
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), got)
	})

	t.Run("accepts bare dates", func(t *testing.T) {
		got, ok := Parse("2024-03-01")
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("malformed input reports absent, not an error", func(t *testing.T) {
		for _, s := range []string{"", "not-a-date", "2024-13-99T00:00:00Z"} {
			got, ok := Parse(s)
			assert.False(t, ok, "input %q", s)
			assert.True(t, got.IsZero())
		}
	})
}

func TestAfter(t *testing.T) {
	// The same instant expressed with and without an offset must compare
	// equal, and ordering must match the UTC-normalized ordering.
	kst := time.FixedZone("KST", 9*60*60)
	aware := time.Date(2024, 3, 1, 21, 30, 0, 0, kst)
	naive := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.False(t, After(aware, naive))
	assert.False(t, After(naive, aware))
	assert.True(t, After(aware.Add(time.Second), naive))
	assert.True(t, After(naive.Add(time.Second), aware))
}

func TestNormalizeStripsMonotonic(t *testing.T) {
	now := time.Now()
	norm := Normalize(now)
	assert.Equal(t, time.UTC, norm.Location())
	assert.True(t, norm.Equal(now))
}

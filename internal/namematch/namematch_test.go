package namematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "red mug", Normalize("  Red Mug "))
	assert.Equal(t, "", Normalize("   "))
}

func TestMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want Tier
	}{
		{"Red Mug", "red mug", TierExact},
		{" Lamp", "LAMP ", TierExact},
		{"Lamp", "Desk Lamp", TierSubstring},
		{"Red Office Chair", "office", TierSubstring},
		{"Black Leather Office Chair", "Leather Chair", TierWordSubset},
		{"red chair", "Red Office Chair", TierWordSubset},
		{"Red Chair", "Red Mug", TierNone},
		{"Coffee Mug", "Coffee Table", TierNone},
		{"Mug", "Plate", TierNone},
		{"", "Lamp", TierNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.a, tc.b), "Match(%q, %q)", tc.a, tc.b)
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("Lamp", "Desk Lamp", TierSubstring))
	assert.False(t, Matches("Leather Chair", "Black Leather Office Chair", TierSubstring),
		"a word subset must not satisfy a substring minimum")
	assert.True(t, Matches("Leather Chair", "Black Leather Office Chair", TierWordSubset))
	assert.False(t, Matches("Red Chair", "Red Mug", TierWordSubset),
		"one shared word must not match at any tier")
}

func TestBestIndex(t *testing.T) {
	t.Run("prefers exact over substring", func(t *testing.T) {
		candidates := []string{"Desk Lamp", "Lamp", "Chair"}
		idx, tier := BestIndex("lamp", candidates, TierSubstring)
		assert.Equal(t, 1, idx)
		assert.Equal(t, TierExact, tier)
	})

	t.Run("most recent wins on equal strength", func(t *testing.T) {
		candidates := []string{"Lamp", "Chair", "Lamp"}
		idx, tier := BestIndex("Lamp", candidates, TierSubstring)
		assert.Equal(t, 2, idx, "reverse scan should pick the later duplicate")
		assert.Equal(t, TierExact, tier)
	})

	t.Run("respects minimum tier", func(t *testing.T) {
		idx, tier := BestIndex("Leather Chair", []string{"Black Leather Office Chair"}, TierSubstring)
		assert.Equal(t, -1, idx)
		assert.Equal(t, TierNone, tier)
	})

	t.Run("no candidates", func(t *testing.T) {
		idx, tier := BestIndex("Lamp", nil, TierSubstring)
		assert.Equal(t, -1, idx)
		assert.Equal(t, TierNone, tier)
	})
}

package whale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{2e9, "🐋"},
		{1e9, "🐋"},
		{999_999_999, "🐳"},
		{1e6, "🐳"},
		{100_000, "🦈"},
		{75_000, "🐙"},
		{10_000, "🐬"},
		{5_000, "🦑"},
		{1_000, "🐟"},
		{500, "🐡"},
		{300, "🦭"},
		{100, "🦞"},
		{50, "🦀"},
		{25, "🐢"},
		{10, "🦐"},
		{5, "🐚"},
		{1, "🦪"},
		{0.5, "🪸"},
		{0.1, "🐠"},
		{0.01, "🐌"},
		{0.001, NoWhale},
		{0, NoWhale},
		{-3, NoWhale},
		{math.NaN(), NoWhale},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.amount), "amount %v", tc.amount)
	}
}

func TestScore(t *testing.T) {
	counts := map[string]int{"🐋": 1, "🦈": 2, "🐟": 10}
	// base 2.0 + 1.0 + 0.1 = 3.1
	assert.InDelta(t, 3.1, Score(counts, 0), 1e-9)
	assert.InDelta(t, 3.1*1.5, Score(counts, 5), 1e-9)
	// volume boost caps at 3x
	assert.InDelta(t, 3.1*3, Score(counts, 500), 1e-9)
	assert.Zero(t, Score(map[string]int{NoWhale: 40}, 10))
}

func TestEmptyCountsCoversEveryTier(t *testing.T) {
	c := EmptyCounts()
	assert.Len(t, c, len(Tiers))
	for _, tier := range Tiers {
		assert.Contains(t, c, tier.Emoji)
	}
}

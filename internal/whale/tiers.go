// Package whale turns token balance changes into buy/sell trades and buckets
// them by size into sea-life tiers.
package whale

import "math"

// NoWhale is the catch-all tier. It is never counted.
const NoWhale = "🌊"

// Tier is one sea-life size bucket. A trade lands in the first tier whose
// threshold it reaches.
type Tier struct {
	Emoji     string
	Threshold float64
	Weight    float64
}

// Tiers is ordered largest first.
var Tiers = []Tier{
	{"🐋", 1_000_000_000, 2.0},
	{"🐳", 1_000_000, 1.0},
	{"🦈", 100_000, 0.5},
	{"🐙", 50_000, 0.25},
	{"🐬", 10_000, 0.1},
	{"🦑", 5_000, 0.05},
	{"🐟", 1_000, 0.01},
	{"🐡", 500, 0.015},
	{"🦭", 250, 0.02},
	{"🦞", 100, 0.01},
	{"🦀", 50, 0.005},
	{"🐢", 25, 0.003},
	{"🦐", 10, 0.002},
	{"🐚", 5, 0.001},
	{"🦪", 1, 0.001},
	{"🪸", 0.5, 0.0005},
	{"🐠", 0.1, 0.0003},
	{"🐌", 0.01, 0.0001},
	{NoWhale, 0, 0},
}

// WhaleClasses are the tiers reported as whale trades.
var WhaleClasses = []string{"🐋", "🐳", "🦈"}

var weights = func() map[string]float64 {
	m := make(map[string]float64, len(Tiers))
	for _, t := range Tiers {
		m[t.Emoji] = t.Weight
	}
	return m
}()

// Classify returns the tier emoji for a token amount.
func Classify(amount float64) string {
	if math.IsNaN(amount) {
		return NoWhale
	}
	for _, t := range Tiers {
		if amount >= t.Threshold {
			return t.Emoji
		}
	}
	return NoWhale
}

// Weight is the score weight of a tier, 0 for unknown emoji.
func Weight(class string) float64 {
	return weights[class]
}

// Score weighs tier counts and boosts them by traded volume, capped at 3x.
func Score(counts map[string]int, volume float64) float64 {
	base := 0.0
	for class, n := range counts {
		base += Weight(class) * float64(n)
	}
	return base * (1 + math.Min(volume/10, 2))
}

// EmptyCounts returns a zeroed count for every tier.
func EmptyCounts() map[string]int {
	m := make(map[string]int, len(Tiers))
	for _, t := range Tiers {
		m[t.Emoji] = 0
	}
	return m
}

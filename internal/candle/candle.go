// Package candle builds OHLC candles from price ticks and derives the
// indicators the trading loop reads: moving averages, doji patterns and
// bullish/bearish counts.
package candle

import (
	"encoding/json"
	"math"
	"time"
)

const (
	DojiNone    = "None"
	DojiBull    = "Bull Doji"
	DojiBear    = "Bear Doji"
	DojiNeutral = "Neutral Doji"

	// DojiBodyRatio is the max body size relative to the close.
	DojiBodyRatio = 0.002
	// DojiRangeRatio is the max body size relative to the high-low range.
	DojiRangeRatio = 0.1

	HourlySuffix = "_1h"
)

type Candle struct {
	Pair      string    `db:"token_pair" json:"token_pair,omitempty"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Open      float64   `db:"open" json:"open"`
	High      float64   `db:"high" json:"high"`
	Low       float64   `db:"low" json:"low"`
	Close     float64   `db:"close" json:"close"`
	MA10      *float64  `db:"ma_10" json:"ma_10"`
	MA50      *float64  `db:"ma_50" json:"ma_50"`
	Doji      string    `db:"doji_type" json:"doji_type"`
}

// UnmarshalJSON treats a missing or empty doji_type as DojiNone.
func (c *Candle) UnmarshalJSON(data []byte) error {
	type plain Candle
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Doji = NormalizeDoji(p.Doji)
	*c = Candle(p)
	return nil
}

// NormalizeDoji maps an empty doji type to DojiNone.
func NormalizeDoji(d string) string {
	if d == "" {
		return DojiNone
	}
	return d
}

func (c Candle) IsDoji() bool { return NormalizeDoji(c.Doji) != DojiNone }

func (c Candle) Bullish() bool { return c.Close > c.Open && !c.IsDoji() }
func (c Candle) Bearish() bool { return c.Close < c.Open && !c.IsDoji() }

// Kind returns an emoji and label for log lines.
func (c Candle) Kind() (string, string) {
	switch {
	case c.IsDoji():
		return "⚪", "doji (" + c.Doji + ")"
	case c.Close > c.Open:
		return "🟢", "green"
	case c.Close < c.Open:
		return "🔴", "red"
	}
	return "⚪", "neutral"
}

// FromTicks builds a candle from prices in arrival order. Its Doji is
// DojiNone until DetectDoji runs.
func FromTicks(pair string, ts time.Time, prices []float64) Candle {
	c := Candle{Pair: pair, Timestamp: ts, Open: prices[0], Close: prices[len(prices)-1], High: prices[0], Low: prices[0], Doji: DojiNone}
	for _, p := range prices[1:] {
		c.High = math.Max(c.High, p)
		c.Low = math.Min(c.Low, p)
	}
	return c
}

// DetectDoji classifies cur against the candle before it. prev may be nil.
func DetectDoji(cur Candle, prev *Candle) string {
	rng := cur.High - cur.Low
	if rng == 0 || cur.Close == 0 {
		return DojiNone
	}
	body := math.Abs(cur.Open - cur.Close)
	upper := cur.High - math.Max(cur.Open, cur.Close)
	lower := math.Min(cur.Open, cur.Close) - cur.Low

	if body/cur.Close >= DojiBodyRatio || body/rng >= DojiRangeRatio || upper <= body || lower <= body {
		return DojiNone
	}
	switch {
	case prev == nil:
		return DojiNeutral
	case prev.Close < prev.Open:
		return DojiBull
	case prev.Close > prev.Open:
		return DojiBear
	}
	return DojiNeutral
}

// MovingAverages takes closes newest first. MA10 needs at least 10 closes
// and MA50 at least 50.
func MovingAverages(closes []float64) (ma10, ma50 *float64) {
	if len(closes) >= 10 {
		v := mean(closes[:10])
		ma10 = &v
	}
	if len(closes) >= 50 {
		v := mean(closes[:50])
		ma50 = &v
	}
	return ma10, ma50
}

// Stats counts candle shapes over a window.
type Stats struct {
	Bullish    int            `json:"bullish_candles"`
	Bearish    int            `json:"bearish_candles"`
	Doji       int            `json:"doji_candles"`
	DojiCounts map[string]int `json:"doji_counts"`
}

func TrendStats(candles []Candle) Stats {
	s := Stats{DojiCounts: map[string]int{}}
	for _, c := range candles {
		switch {
		case c.IsDoji():
			s.Doji++
			s.DojiCounts[c.Doji]++
		case c.Close > c.Open:
			s.Bullish++
		case c.Close < c.Open:
			s.Bearish++
		}
	}
	return s
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// Mean and StdDev are population statistics.
func Mean(v []float64) float64 { return mean(v) }

func StdDev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := mean(v)
	ss := 0.0
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(v)))
}

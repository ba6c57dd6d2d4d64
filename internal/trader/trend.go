package trader

import "archon/internal/candle"

type Trend string

const (
	Uptrend   Trend = "uptrend"
	Downtrend Trend = "downtrend"
	Sideways  Trend = "sideways"
	NoTrend   Trend = "none"
)

// DetectTrend reads the short-term trend off recent candles and returns the
// exit target for the position. Only non-doji candles count as bullish or
// bearish. Candle MAs are averaged; without any the last close stands in.
func DetectTrend(candles []candle.Candle, price, avgBuy, profitThreshold float64) (Trend, float64) {
	base := price
	if avgBuy > 0 {
		base = avgBuy
	}
	if len(candles) == 0 {
		return Sideways, base * 1.01
	}

	last := candles[len(candles)-1].Close
	ma10 := meanOr(candles, func(c candle.Candle) *float64 { return c.MA10 }, last)
	ma50 := meanOr(candles, func(c candle.Candle) *float64 { return c.MA50 }, last)

	var bull, bear int
	for _, c := range candles {
		switch {
		case c.Bullish():
			bull++
		case c.Bearish():
			bear++
		}
	}

	trend := Sideways
	switch {
	case bull > bear && price > ma10*1.005 && price > ma50:
		trend = Uptrend
	case bear > bull && price < ma10*0.995 && price < ma50:
		trend = Downtrend
	}
	return trend, base * (1 + profitThreshold)
}

func meanOr(candles []candle.Candle, field func(candle.Candle) *float64, fallback float64) float64 {
	var vals []float64
	for _, c := range candles {
		if v := field(c); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return fallback
	}
	return candle.Mean(vals)
}

// Progress is how far price has moved from avgBuy towards target, in
// percent clamped to [0, 100].
func Progress(price, avgBuy, target float64) float64 {
	if avgBuy <= 0 || target <= avgBuy {
		return 0
	}
	return max(0, min((price-avgBuy)/(target-avgBuy)*100, 100))
}

package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archon/internal/candle"
)

func ptr(v float64) *float64 { return &v }

func bar(open, close float64, ma10, ma50 *float64) candle.Candle {
	return candle.Candle{
		Open:  open,
		Close: close,
		High:  max(open, close),
		Low:   min(open, close),
		MA10:  ma10,
		MA50:  ma50,
		Doji:  candle.DojiNone,
	}
}

func TestDetectTrend(t *testing.T) {
	up := []candle.Candle{
		bar(0.0090, 0.0095, ptr(0.0095), ptr(0.0090)),
		bar(0.0092, 0.0096, ptr(0.0095), nil),
		bar(0.0096, 0.0094, nil, ptr(0.0090)),
	}
	down := []candle.Candle{
		bar(0.0110, 0.0105, ptr(0.0105), ptr(0.0110)),
		bar(0.0108, 0.0104, ptr(0.0105), ptr(0.0110)),
	}

	tests := []struct {
		name    string
		candles []candle.Candle
		price   float64
		avgBuy  float64
		trend   Trend
		target  float64
	}{
		{"uptrend", up, 0.01, 0, Uptrend, 0.01 * 1.015},
		{"uptrend needs margin over MA10", up, 0.0095, 0, Sideways, 0.0095 * 1.015},
		{"downtrend", down, 0.01, 0.012, Downtrend, 0.012 * 1.015},
		{"downtrend needs margin under MA10", down, 0.0105, 0, Sideways, 0.0105 * 1.015},
		{"no candles", nil, 0.01, 0, Sideways, 0.01 * 1.01},
		{"no candles uses avg buy", nil, 0.01, 0.02, Sideways, 0.02 * 1.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend, target := DetectTrend(tt.candles, tt.price, tt.avgBuy, 0.015)
			assert.Equal(t, tt.trend, trend)
			assert.InDelta(t, tt.target, target, 1e-12)
		})
	}
}

func TestDetectTrendIgnoresDoji(t *testing.T) {
	c := bar(0.0090, 0.0095, ptr(0.0095), ptr(0.0090))
	c.Doji = candle.DojiBull
	trend, _ := DetectTrend([]candle.Candle{c}, 0.01, 0, 0.015)
	assert.Equal(t, Sideways, trend)
}

func TestDetectTrendFallsBackToLastClose(t *testing.T) {
	cs := []candle.Candle{bar(0.0090, 0.0095, nil, nil), bar(0.0091, 0.0093, nil, nil)}
	trend, _ := DetectTrend(cs, 0.0094, 0, 0.015)
	assert.Equal(t, Uptrend, trend)
}

func TestProgress(t *testing.T) {
	assert.InDelta(t, 50, Progress(0.0105, 0.01, 0.011), 1e-9)
	assert.Equal(t, 100.0, Progress(0.02, 0.01, 0.011))
	assert.Equal(t, 0.0, Progress(0.009, 0.01, 0.011))
	assert.Equal(t, 0.0, Progress(0.01, 0, 0.011))
}

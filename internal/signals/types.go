// Package signals aggregates stored candles and whale detections into the
// snapshot the trading loop polls, and serves it over HTTP.
package signals

import (
	"time"

	"archon/internal/candle"
)

// VolumeDivisor converts summed whale_detector amounts into the volume unit
// used by the sea-life score.
const VolumeDivisor = 1_000_000_000

const NoDataMessage = "No recent data available yet"

// TradeAggregate is one (minute, side, class) bucket of whale detections.
type TradeAggregate struct {
	Minute         time.Time `db:"minute"`
	Side           string    `db:"trade_type"`
	Classification string    `db:"classification"`
	Count          int       `db:"trade_count"`
	TotalAmount    float64   `db:"total_amount"`
}

type WhaleTrade struct {
	Wallet         string    `db:"whale_wallet" json:"whale_wallet"`
	Token          string    `db:"token" json:"token"`
	Side           string    `db:"trade_type" json:"trade_type"`
	Classification string    `db:"classification" json:"classification"`
	Amount         float64   `db:"amount" json:"amount"`
	DetectedAt     time.Time `db:"detected_time" json:"detected_time"`
	AmountSOL      float64   `db:"-" json:"amount_sol"`
}

type Trends struct {
	AvgPriceLast10  float64 `json:"avg_price_last_10"`
	PriceVolatility float64 `json:"price_volatility"`
	IsBullish       bool    `json:"is_bullish"`
}

type MinuteTrades struct {
	Minute time.Time `json:"minute"`
	Buys   int       `json:"buys"`
	Sells  int       `json:"sells"`
	Holds  int       `json:"holds"`
}

// Snapshot is the body of GET /data.
type Snapshot struct {
	Token           string          `json:"token"`
	Price           float64         `json:"price"`
	Buys            int             `json:"buys"`
	Sells           int             `json:"sells"`
	Holds           int             `json:"holds"`
	Classifications map[string]int  `json:"classifications"`
	SeaLifeScore    float64         `json:"sea_life_score"`
	WhaleTrade      *WhaleTrade     `json:"whale_trade"`
	Trends          *Trends         `json:"trends"`
	DojiSignal      *string         `json:"doji_signal"`
	CandleTrend     []candle.Candle `json:"candle_trend"`
	TrendStats      candle.Stats    `json:"trend_stats"`
	TradeTrend      []MinuteTrades  `json:"trade_trend"`
	Timestamp       time.Time       `json:"timestamp"`
	LastTradeTime   *time.Time      `json:"last_trade_time"`
	Message         string          `json:"message,omitempty"`
}

// Placeholder is returned while the cache holds nothing for token.
func Placeholder(token string, price float64, ts time.Time) Snapshot {
	return Snapshot{
		Token:           token,
		Price:           price,
		Classifications: map[string]int{},
		CandleTrend:     []candle.Candle{},
		TrendStats:      candle.Stats{DojiCounts: map[string]int{}},
		TradeTrend:      []MinuteTrades{},
		Timestamp:       ts,
		Message:         NoDataMessage,
	}
}

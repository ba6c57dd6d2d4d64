package trader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	historyLimit  = 60
	historyKeep   = 50
	trendsWindow  = 10
	maxVolatility = 0.05
)

// Trade record actions.
const (
	TradeBuy        = "BUY"
	TradeSell       = "SELL"
	TradeBuyFailed  = "BUY_FAILED"
	TradeSellFailed = "SELL_FAILED"
)

type TradeRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Amount       float64   `json:"amount"`
	SOLAmount    float64   `json:"sol_amount"`
	Price        float64   `json:"price"`
	TxID         string    `json:"txid"`
	SeaLifeScore float64   `json:"sea_life_score"`
	Profit       float64   `json:"profit"`
	AvgBuyPrice  float64   `json:"avg_buy_price"`
	ExitTarget   float64   `json:"exit_target"`
}

type MarketTrends struct {
	AvgPriceLast10  float64 `json:"avg_price_last_10"`
	PriceVolatility float64 `json:"price_volatility"`
	AvgSeaLifeScore float64 `json:"avg_sea_life_score"`
	BuySuccessRate  float64 `json:"buy_success_rate"`
	SellProfitRate  float64 `json:"sell_profit_rate"`
}

// State is the trading loop's state file.
type State struct {
	CachedSOLBalance   float64       `json:"cached_sol_balance"`
	CachedTokenBalance float64       `json:"cached_token_balance"`
	TradeHistory       []TradeRecord `json:"trade_history"`
	ProfitLoss         float64       `json:"profit_loss"`
	InitialSnipeDone   bool          `json:"initial_snipe_done"`
	InitialSOLBalance  *float64      `json:"initial_sol_balance,omitempty"`
	Tracker            TrackerState  `json:"tracker_state"`
	MarketTrends       MarketTrends  `json:"market_trends"`
	FlipCount          int           `json:"flip_count"`
	CycleStartTime     time.Time     `json:"cycle_start_time"`
	LastCyclePL        float64       `json:"last_cycle_pl"`
	LastPL             float64       `json:"last_pl"`
	LastSellPrice      float64       `json:"last_sell_price"`
	LastPriceUpdate    time.Time     `json:"last_price_update"`
	ExitTarget         float64       `json:"exit_target"`
	Trend15m           Trend         `json:"trend_15min"`
	SOLPrice           float64       `json:"sol_price"`
}

func DefaultState(now time.Time) *State {
	return &State{
		TradeHistory: []TradeRecord{},
		Tracker: TrackerState{
			LastTradeTime: now,
			BuyHistory:    []Fill{},
			PriceHistory:  []PricePoint{},
		},
		CycleStartTime:  now,
		LastPriceUpdate: now,
	}
}

// LoadState reads the state file. A missing, empty or unreadable file is
// replaced with a fresh default state.
func LoadState(path string, now time.Time) (*State, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0):
		log.Info().Str("path", path).Msg("📝 Initializing new state")
		st := DefaultState(now)
		return st, SaveState(path, st)
	case err != nil:
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}

	st := DefaultState(now)
	if err := json.Unmarshal(data, st); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("⚠️ Invalid state file, resetting to default")
		st = DefaultState(now)
		return st, SaveState(path, st)
	}
	if st.TradeHistory == nil {
		st.TradeHistory = []TradeRecord{}
	}
	log.Info().Str("path", path).Int("trades", len(st.TradeHistory)).Msg("📝 Loaded state")
	return st, nil
}

// SaveState writes st through a temp file and rename.
func SaveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Capture copies the tracker into the state and recomputes profit/loss
// against the initial SOL balance.
func (s *State) Capture(t *Tracker) {
	initial := t.TotalSOL()
	if s.InitialSOLBalance != nil {
		initial = *s.InitialSOLBalance
	}
	s.ProfitLoss = t.TotalSOL() - initial
	s.Tracker = t.State()
}

// RecordTrade appends rec, trims the history and refreshes the market trends.
func (s *State) RecordTrade(rec TradeRecord) {
	s.TradeHistory = append(s.TradeHistory, rec)
	if len(s.TradeHistory) > historyLimit {
		s.TradeHistory = append([]TradeRecord(nil), s.TradeHistory[len(s.TradeHistory)-historyKeep:]...)
	}
	s.MarketTrends = ComputeMarketTrends(s.TradeHistory)
	log.Info().
		Float64("avg_price", s.MarketTrends.AvgPriceLast10).
		Float64("volatility", s.MarketTrends.PriceVolatility).
		Float64("avg_score", s.MarketTrends.AvgSeaLifeScore).
		Float64("buy_success", s.MarketTrends.BuySuccessRate).
		Float64("sell_profit", s.MarketTrends.SellProfitRate).
		Msg("📊 Updated market trends")
}

// ComputeMarketTrends summarizes the last ten trades for prices and scores
// and the whole history for success rates.
func ComputeMarketTrends(history []TradeRecord) MarketTrends {
	var mt MarketTrends
	recent := history
	if len(recent) > trendsWindow {
		recent = recent[len(recent)-trendsWindow:]
	}
	if len(recent) > 0 {
		lo, hi := recent[0].Price, recent[0].Price
		var sumPrice, sumScore float64
		for _, r := range recent {
			sumPrice += r.Price
			sumScore += r.SeaLifeScore
			lo = min(lo, r.Price)
			hi = max(hi, r.Price)
		}
		mt.AvgPriceLast10 = sumPrice / float64(len(recent))
		mt.AvgSeaLifeScore = sumScore / float64(len(recent))
		if len(recent) > 1 && mt.AvgPriceLast10 > 0 {
			mt.PriceVolatility = min((hi-lo)/mt.AvgPriceLast10, maxVolatility)
		}
	}

	var buys, filled, sells, profitable int
	for _, r := range history {
		switch r.Action {
		case TradeBuy:
			buys++
			if r.TxID != "" {
				filled++
			}
		case TradeSell:
			sells++
			if r.Profit > 0 {
				profitable++
			}
		}
	}
	mt.BuySuccessRate, mt.SellProfitRate = 1, 1
	if buys > 0 {
		mt.BuySuccessRate = float64(filled) / float64(buys)
	}
	if sells > 0 {
		mt.SellProfitRate = float64(profitable) / float64(sells)
	}
	return mt
}

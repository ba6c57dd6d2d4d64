package trader

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Fill is one executed swap as seen by the tracker. Sells are stored with
// negative amounts.
type Fill struct {
	SOLSpent    float64   `json:"sol_spent"`
	TokenBought float64   `json:"token_bought"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	TxID        string    `json:"txid"`
}

type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackerState is the persisted part of a Tracker.
type TrackerState struct {
	SOLLiquid       float64      `json:"sol_liquid_available"`
	SOLTrimmed      float64      `json:"sol_trimmed"`
	AvgBuyPrice     float64      `json:"avg_buy_price"`
	CurrentRoll     float64      `json:"current_roll"`
	TokenAmount     float64      `json:"token_amount"`
	LastSellAttempt time.Time    `json:"last_sell_attempt"`
	LastBuyAttempt  time.Time    `json:"last_buy_attempt"`
	LastTradeTime   time.Time    `json:"last_trade_time"`
	BuyHistory      []Fill       `json:"buy_history"`
	PriceHistory    []PricePoint `json:"price_history"`
}

// Tracker splits the wallet's SOL into a liquid part the loop may spend and
// a trimmed part set aside from sell proceeds, and follows the open position.
type Tracker struct {
	TrackerState
	cfg Config
}

func NewTracker(cfg Config, st TrackerState) *Tracker {
	if st.BuyHistory == nil {
		st.BuyHistory = []Fill{}
	}
	if st.PriceHistory == nil {
		st.PriceHistory = []PricePoint{}
	}
	return &Tracker{TrackerState: st, cfg: cfg}
}

// State returns a copy safe to serialize.
func (t *Tracker) State() TrackerState {
	st := t.TrackerState
	st.BuyHistory = append([]Fill(nil), t.BuyHistory...)
	st.PriceHistory = append([]PricePoint(nil), t.PriceHistory...)
	return st
}

func (t *Tracker) TotalSOL() float64 {
	return t.SOLLiquid + t.SOLTrimmed
}

// RecordBuy books solSpent SOL for tokens at price. The spend is capped at
// the liquid balance and the average buy price is weighted by token amount.
func (t *Tracker) RecordBuy(now time.Time, solSpent, tokens, price float64, txid string) {
	if solSpent > t.SOLLiquid {
		solSpent = t.SOLLiquid
	}
	held := math.Max(t.TokenAmount, 0)
	if total := held + tokens; total > 0 {
		t.AvgBuyPrice = (held*t.AvgBuyPrice + tokens*price) / total
	} else {
		t.AvgBuyPrice = price
	}

	t.CurrentRoll += solSpent
	t.TokenAmount += tokens
	t.SOLLiquid -= solSpent
	t.BuyHistory = append(t.BuyHistory, Fill{
		SOLSpent:    solSpent,
		TokenBought: tokens,
		Price:       price,
		Timestamp:   now,
		TxID:        txidOrPending(txid),
	})
	t.LastTradeTime = now
	t.LastBuyAttempt = now
	t.appendPrice(now, price)

	log.Debug().
		Float64("liquid", t.SOLLiquid).
		Float64("trimmed", t.SOLTrimmed).
		Float64("tokens", t.TokenAmount).
		Float64("avg_buy_price", t.AvgBuyPrice).
		Float64("roll", t.CurrentRoll).
		Msg("🤑 Buy recorded")
}

// RecordSell books solReceived for tokensSold. TrimRatio of the proceeds is
// moved to the trimmed balance. Selling everything closes the position.
func (t *Tracker) RecordSell(now time.Time, solReceived, tokensSold, price float64, txid string) {
	if tokensSold > t.TokenAmount {
		tokensSold = t.TokenAmount
	}
	trim := solReceived * t.cfg.TrimRatio
	t.SOLLiquid += solReceived - trim
	t.SOLTrimmed += trim
	t.TokenAmount -= tokensSold
	t.BuyHistory = append(t.BuyHistory, Fill{
		SOLSpent:    -solReceived,
		TokenBought: -tokensSold,
		Price:       price,
		Timestamp:   now,
		TxID:        txidOrPending(txid),
	})
	if t.TokenAmount <= 0 {
		t.TokenAmount = 0
		t.ResetBuyHistory()
	}
	t.LastTradeTime = now
	t.LastSellAttempt = now
	t.appendPrice(now, price)

	log.Debug().
		Float64("liquid", t.SOLLiquid).
		Float64("trimmed", t.SOLTrimmed).
		Float64("tokens", t.TokenAmount).
		Msg("🤑 Sell recorded")
}

// SyncWithWallet reconciles the tracker with on-chain balances. SOL is
// resynced when it drifted by more than two network fees, keeping the
// trimmed share; tokens when they drifted by more than 0.001.
func (t *Tracker) SyncWithWallet(now time.Time, solBalance, tokenBalance float64, force bool) {
	tracked := t.TotalSOL()
	if force || math.Abs(tracked-solBalance) > 2*t.cfg.NetworkFee {
		ratio := 0.5
		if tracked > 0 {
			ratio = t.SOLTrimmed / tracked
		}
		if force || now.Sub(t.LastTradeTime) > t.cfg.ConfirmationDelay {
			t.SOLTrimmed = math.Min(t.SOLTrimmed, solBalance*ratio)
			t.SOLLiquid = solBalance - t.SOLTrimmed
			log.Debug().
				Float64("liquid", t.SOLLiquid).
				Float64("trimmed", t.SOLTrimmed).
				Float64("wallet", solBalance).
				Msg("🎯 Synced SOL with wallet")
		}
	}

	if force || math.Abs(tokenBalance-t.TokenAmount) > 0.001 {
		t.TokenAmount = tokenBalance
		if tokenBalance == 0 && (t.CurrentRoll != 0 || len(t.BuyHistory) > 0) {
			t.ResetBuyHistory()
			log.Info().Msg("🎯 No tokens in wallet, cleared buy history")
		}
	}
}

// ResetBuyHistory forgets the open position's cost basis.
func (t *Tracker) ResetBuyHistory() {
	t.CurrentRoll = 0
	t.AvgBuyPrice = 0
	t.BuyHistory = []Fill{}
}

// ObservePrice appends price when it differs from the last one seen and
// reports whether it did.
func (t *Tracker) ObservePrice(now time.Time, price float64) bool {
	if n := len(t.PriceHistory); n > 0 && t.PriceHistory[n-1].Price == price {
		return false
	}
	t.appendPrice(now, price)
	return true
}

func (t *Tracker) appendPrice(now time.Time, price float64) {
	t.PriceHistory = append(t.PriceHistory, PricePoint{Price: price, Timestamp: now})
	kept := t.PriceHistory[:0]
	for _, p := range t.PriceHistory {
		if now.Sub(p.Timestamp) < t.cfg.TrendWindow {
			kept = append(kept, p)
		}
	}
	t.PriceHistory = kept
}

func txidOrPending(txid string) string {
	if txid == "" {
		return "pending"
	}
	return txid
}

package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PaperFeePercent is charged on each side of a simulated swap.
const PaperFeePercent = 0.003

var ErrInsufficientBalance = errors.New("insufficient paper balance")

// PaperWallet fills swaps at the quoted price minus PaperFeePercent. It
// stands in for both the chain wallet and the swap script in dry runs.
type PaperWallet struct {
	mu sync.Mutex

	SOLBalance       float64 `json:"solBalance"`
	TokenBalance     float64 `json:"tokenBalance"`
	InitialSOL       float64 `json:"-"`
	TradesMade       int     `json:"tradesMade"`
	ProfitableTrades int     `json:"profitableTrades"`
	TotalFeesPaid    float64 `json:"totalFeesPaid"`

	costBasis float64
	journal   Journal
}

type paperLogEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	TxID          string    `json:"txid"`
	SOLAmount     float64   `json:"solAmount"`
	TokenAmount   float64   `json:"tokenAmount"`
	PriceUSD      float64   `json:"priceUsd"`
	FeeSOL        float64   `json:"feeSOL"`
	ProfitLossSOL float64   `json:"profitLossSOL,omitempty"`
	SOLBalance    float64   `json:"solBalance"`
	TradesMade    int       `json:"tradesMade"`
	FeesPaid      float64   `json:"feesPaid"`
}

func NewPaperWallet(sol float64, journal Journal) *PaperWallet {
	log.Info().Float64("sol", sol).Msg("💰 Paper trading initialized")
	return &PaperWallet{SOLBalance: sol, InitialSOL: sol, journal: journal}
}

func (w *PaperWallet) SOL(context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.SOLBalance, nil
}

func (w *PaperWallet) Tokens(context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.TokenBalance, nil
}

// Swap converts through SOL/USD since prices are quoted in USD.
func (w *PaperWallet) Swap(_ context.Context, req SwapRequest) (SwapResult, error) {
	if req.Price <= 0 || req.SOLPrice <= 0 {
		return SwapResult{}, errors.New("paper swap needs a price")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := paperLogEntry{
		Timestamp: time.Now().UTC(),
		TxID:      "paper-" + uuid.New().String()[:8],
		PriceUSD:  req.Price,
	}
	priceSOL := req.Price / req.SOLPrice

	if req.Buy {
		fee := req.Amount * PaperFeePercent
		if req.Amount+fee > w.SOLBalance {
			return SwapResult{}, ErrInsufficientBalance
		}
		tokens := req.Amount / priceSOL
		w.SOLBalance -= req.Amount + fee
		w.TokenBalance += tokens
		w.costBasis += req.Amount + fee
		w.TotalFeesPaid += fee
		entry.Action, entry.SOLAmount, entry.TokenAmount, entry.FeeSOL = "BUY", req.Amount, tokens, fee
	} else {
		tokens := min(req.Amount, w.TokenBalance)
		if tokens <= 0 {
			return SwapResult{}, ErrInsufficientBalance
		}
		gross := tokens * priceSOL
		fee := gross * PaperFeePercent
		basis := w.costBasis * tokens / w.TokenBalance
		pl := gross - fee - basis

		w.SOLBalance += gross - fee
		w.TokenBalance -= tokens
		w.costBasis -= basis
		w.TotalFeesPaid += fee
		w.TradesMade++
		if pl > 0 {
			w.ProfitableTrades++
		}
		entry.Action, entry.SOLAmount, entry.TokenAmount, entry.FeeSOL, entry.ProfitLossSOL = "SELL", gross, tokens, fee, pl
	}
	entry.SOLBalance, entry.TradesMade, entry.FeesPaid = w.SOLBalance, w.TradesMade, w.TotalFeesPaid

	log.Info().
		Str("action", entry.Action).
		Str("txid", entry.TxID).
		Float64("sol", entry.SOLAmount).
		Float64("tokens", entry.TokenAmount).
		Float64("fee", entry.FeeSOL).
		Float64("balance", w.SOLBalance).
		Msg("📄 Paper trade")
	if err := w.journal.Append(entry); err != nil {
		log.Warn().Err(err).Msg("⚠️ Error logging paper trade")
	}
	return SwapResult{TxID: entry.TxID, PoolPrice: req.Price}, nil
}

// Profitability is the share of closed paper trades that made money, in percent.
func (w *PaperWallet) Profitability() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.TradesMade == 0 {
		return 0
	}
	return float64(w.ProfitableTrades) / float64(w.TradesMade) * 100
}

package whale

import (
	"math"
	"strings"
	"time"

	"archon/internal/chain"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
	Hold Side = "hold"
)

func (s Side) Emoji() string {
	switch s {
	case Buy:
		return "🟢"
	case Sell:
		return "🔴"
	}
	return "⚪"
}

// DexPrograms are the program ids whose log lines indicate swap activity.
var DexPrograms = map[string]string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "Raydium",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "Jupiter",
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  "Lifinity",
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA":  "SPL Token",
	"9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP": "Orca",
	"M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K":  "Meteora",
}

var tradeKeywords = []string{"Swap", "ray_log", "Transfer", "TransferChecked", "Burn", "Mint"}

// DefaultMinTradeAmount drops dust balance changes.
const DefaultMinTradeAmount = 0.5

// Trade is one wallet's balance change of the target mint in a transaction.
type Trade struct {
	Signature   string
	Wallet      string
	BlockTime   time.Time
	Mint        string
	PreBalance  float64
	PostBalance float64
	Amount      float64
	Side        Side
	Failed      bool
}

func (t Trade) Emoji() string { return t.Side.Emoji() }

// HasTradeActivity reports whether a transaction looks like it touched a
// DEX or moved the mint.
func HasTradeActivity(tx chain.Transaction, mint string) bool {
	for _, line := range tx.LogMessages {
		for program := range DexPrograms {
			if strings.Contains(line, program) {
				return true
			}
		}
		for _, kw := range tradeKeywords {
			if strings.Contains(line, kw) {
				return true
			}
		}
	}
	return tx.MentionsMint(mint)
}

type balancePair struct {
	pre, post float64
}

// ExtractTrades diffs pre and post balances of mint per wallet. Unchanged
// wallets and changes below minAmount are dropped. Trades come back in the
// order wallets first appear in the balance lists.
func ExtractTrades(tx chain.Transaction, mint string, minAmount float64) []Trade {
	var order []string
	wallets := make(map[string]*balancePair)
	get := func(b chain.TokenBalance) *balancePair {
		w := walletFor(tx, b)
		bp, ok := wallets[w]
		if !ok {
			bp = &balancePair{}
			wallets[w] = bp
			order = append(order, w)
		}
		return bp
	}
	for _, b := range tx.PreTokenBalances {
		if b.Mint == mint {
			get(b).pre = b.UIAmount
		}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Mint == mint {
			get(b).post = b.UIAmount
		}
	}

	var trades []Trade
	for _, wallet := range order {
		bp := wallets[wallet]
		if bp.pre == bp.post {
			continue
		}
		amount := math.Abs(bp.post - bp.pre)
		if amount < minAmount {
			continue
		}
		side := Sell
		if bp.post > bp.pre {
			side = Buy
		}
		trades = append(trades, Trade{
			Signature:   tx.Signature,
			Wallet:      wallet,
			BlockTime:   tx.BlockTime,
			Mint:        mint,
			PreBalance:  bp.pre,
			PostBalance: bp.post,
			Amount:      amount,
			Side:        side,
			Failed:      tx.Failed,
		})
	}
	return trades
}

func walletFor(tx chain.Transaction, b chain.TokenBalance) string {
	if b.Owner != "" {
		return b.Owner
	}
	if b.AccountIndex >= 0 && b.AccountIndex < len(tx.AccountKeys) {
		return tx.AccountKeys[b.AccountIndex]
	}
	return "Unknown_" + tx.Signature
}

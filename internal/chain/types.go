package chain

import "time"

// TokenBalance is one pre or post SPL token balance entry of a transaction.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     float64
}

// Transaction is the subset of a confirmed transaction the trade
// extractor needs.
type Transaction struct {
	Signature         string
	BlockTime         time.Time
	Failed            bool
	LogMessages       []string
	AccountKeys       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	BlockTime time.Time
	Failed    bool
}

// MentionsMint reports whether the mint shows up in any balance entry or
// account key.
func (tx Transaction) MentionsMint(mint string) bool {
	for _, b := range tx.PreTokenBalances {
		if b.Mint == mint {
			return true
		}
	}
	for _, b := range tx.PostTokenBalances {
		if b.Mint == mint {
			return true
		}
	}
	for _, k := range tx.AccountKeys {
		if k == mint {
			return true
		}
	}
	return false
}

package market

import (
	"fmt"
	"time"
)

// PairSnapshot is one DexScreener pair reading flattened for the
// pair_snapshots table.
type PairSnapshot struct {
	Timestamp         time.Time
	PairAddress       string
	BaseTokenAddress  string
	BaseTokenSymbol   string
	QuoteTokenAddress string
	QuoteTokenSymbol  string
	PriceNative       float64
	PriceUSD          float64
	LiquidityUSD      float64
	VolumeM5          float64
	VolumeH1          float64
	VolumeH6          float64
	VolumeH24         float64
	PriceChangeM5     float64
	PriceChangeH1     float64
	PriceChangeH6     float64
	PriceChangeH24    float64
	TxnsM5Buys        int
	TxnsM5Sells       int
	TxnsH1Buys        int
	TxnsH1Sells       int
	PairCreatedAt     time.Time
}

// SnapshotFromPair validates p and converts it. Pairs missing an address or
// reporting negative liquidity or volume are rejected.
func SnapshotFromPair(p Pair, at time.Time) (PairSnapshot, error) {
	if p.PairAddress == "" || p.BaseToken.Address == "" || p.QuoteToken.Address == "" {
		return PairSnapshot{}, fmt.Errorf("pair %q is missing an address", p.PairAddress)
	}
	if p.Liquidity.Usd < 0 || p.Volume.M5 < 0 || p.Volume.H24 < 0 {
		return PairSnapshot{}, fmt.Errorf("pair %s has negative liquidity or volume", p.PairAddress)
	}
	return PairSnapshot{
		Timestamp:         at.UTC(),
		PairAddress:       p.PairAddress,
		BaseTokenAddress:  p.BaseToken.Address,
		BaseTokenSymbol:   p.BaseToken.Symbol,
		QuoteTokenAddress: p.QuoteToken.Address,
		QuoteTokenSymbol:  p.QuoteToken.Symbol,
		PriceNative:       p.PriceNativeFloat(),
		PriceUSD:          p.PriceUSDFloat(),
		LiquidityUSD:      p.Liquidity.Usd,
		VolumeM5:          p.Volume.M5,
		VolumeH1:          p.Volume.H1,
		VolumeH6:          p.Volume.H6,
		VolumeH24:         p.Volume.H24,
		PriceChangeM5:     p.PriceChange.M5,
		PriceChangeH1:     p.PriceChange.H1,
		PriceChangeH6:     p.PriceChange.H6,
		PriceChangeH24:    p.PriceChange.H24,
		TxnsM5Buys:        p.Txns.M5.Buys,
		TxnsM5Sells:       p.Txns.M5.Sells,
		TxnsH1Buys:        p.Txns.H1.Buys,
		TxnsH1Sells:       p.Txns.H1.Sells,
		PairCreatedAt:     p.CreatedAt(),
	}, nil
}

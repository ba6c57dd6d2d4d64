package market

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/target"
)

// Entry scoring weights over min-max normalized components.
const (
	wM5Change       = 0.30
	wH1Change       = 0.15
	wM5Volume       = 0.20
	wM5BuySellRatio = 0.25
	wLiquidity      = 0.10
)

type Candidate struct {
	PairAddress    string
	BaseSymbol     string
	BaseAddress    string
	QuoteSymbol    string
	PriceChangeM5  float64
	PriceChangeH1  float64
	VolumeM5       float64
	LiquidityUSD   float64
	M5BuySellRatio float64
	PriceUSD       string
	PairURL        string
	Score          float64
}

func (c Candidate) Token() target.Token {
	return target.Token{
		Ticker:      strings.ToUpper(c.BaseSymbol),
		MintAddress: c.BaseAddress,
		PairAddress: c.PairAddress,
	}
}

func buySellRatio(buys, sells int) float64 {
	total := buys + sells
	if total == 0 {
		return 0.5
	}
	return float64(buys) / float64(total)
}

func normalize(v, lo, hi float64) float64 {
	if hi-lo == 0 {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Filter keeps Solana pairs quoted in one of the configured symbols that
// clear the liquidity, volume and age floors.
func Filter(pairs []Pair, cfg ScannerConfig, now time.Time) []Candidate {
	quotes := make(map[string]bool, len(cfg.QuoteSymbols))
	for _, s := range cfg.QuoteSymbols {
		quotes[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	var out []Candidate
	for _, p := range pairs {
		if p.ChainID != SolanaChainID || p.BaseToken.Address == "" || p.QuoteToken.Address == "" {
			continue
		}
		if !quotes[strings.ToUpper(p.QuoteToken.Symbol)] {
			continue
		}
		if p.Liquidity.Usd < cfg.MinLiquidityUSD || p.Volume.M5 < cfg.MinVolumeM5USD {
			continue
		}
		if cfg.MinPairAge > 0 && p.PairCreatedAt > 0 && now.Sub(p.CreatedAt()) < cfg.MinPairAge {
			continue
		}
		out = append(out, Candidate{
			PairAddress:    p.PairAddress,
			BaseSymbol:     p.BaseToken.Symbol,
			BaseAddress:    p.BaseToken.Address,
			QuoteSymbol:    p.QuoteToken.Symbol,
			PriceChangeM5:  p.PriceChange.M5,
			PriceChangeH1:  p.PriceChange.H1,
			VolumeM5:       p.Volume.M5,
			LiquidityUSD:   p.Liquidity.Usd,
			M5BuySellRatio: buySellRatio(p.Txns.M5.Buys, p.Txns.M5.Sells),
			PriceUSD:       p.PriceUsd,
			PairURL:        p.URL,
		})
	}
	return out
}

// Score fills Candidate.Score with the weighted sum of normalized
// components. Fewer than two candidates all score 0.
func Score(cs []Candidate) {
	if len(cs) < 2 {
		for i := range cs {
			cs[i].Score = 0
		}
		return
	}
	minM5, maxM5 := cs[0].PriceChangeM5, cs[0].PriceChangeM5
	minH1, maxH1 := cs[0].PriceChangeH1, cs[0].PriceChangeH1
	minVol, maxVol := cs[0].VolumeM5, cs[0].VolumeM5
	minRatio, maxRatio := cs[0].M5BuySellRatio, cs[0].M5BuySellRatio
	minLiq, maxLiq := cs[0].LiquidityUSD, cs[0].LiquidityUSD
	for _, c := range cs[1:] {
		minM5, maxM5 = math.Min(minM5, c.PriceChangeM5), math.Max(maxM5, c.PriceChangeM5)
		minH1, maxH1 = math.Min(minH1, c.PriceChangeH1), math.Max(maxH1, c.PriceChangeH1)
		minVol, maxVol = math.Min(minVol, c.VolumeM5), math.Max(maxVol, c.VolumeM5)
		minRatio, maxRatio = math.Min(minRatio, c.M5BuySellRatio), math.Max(maxRatio, c.M5BuySellRatio)
		minLiq, maxLiq = math.Min(minLiq, c.LiquidityUSD), math.Max(maxLiq, c.LiquidityUSD)
	}
	for i, c := range cs {
		cs[i].Score = normalize(c.PriceChangeM5, minM5, maxM5)*wM5Change +
			normalize(c.PriceChangeH1, minH1, maxH1)*wH1Change +
			normalize(c.VolumeM5, minVol, maxVol)*wM5Volume +
			normalize(c.M5BuySellRatio, minRatio, maxRatio)*wM5BuySellRatio +
			normalize(c.LiquidityUSD, minLiq, maxLiq)*wLiquidity
	}
}

// Rank filters, scores and sorts pairs, returning at most cfg.Top.
func Rank(pairs []Pair, cfg ScannerConfig, now time.Time) []Candidate {
	cs := Filter(pairs, cfg, now)
	Score(cs)
	if cfg.RankBy == RankByScore {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Score > cs[j].Score })
	} else {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].PriceChangeM5 > cs[j].PriceChangeM5 })
	}
	if cfg.Top > 0 && len(cs) > cfg.Top {
		cs = cs[:cfg.Top]
	}
	return cs
}

type Scanner struct {
	src        Searcher
	cfg        ScannerConfig
	targetPath string
}

// NewScanner builds a scanner. A non-empty targetPath makes every scan write
// the leading candidate as the new target token.
func NewScanner(src Searcher, cfg ScannerConfig, targetPath string) *Scanner {
	return &Scanner{src: src, cfg: cfg, targetPath: targetPath}
}

func (s *Scanner) Run(ctx context.Context) error {
	log.Info().Msg("🚀 Starting DexScreener momentum scanner")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Scan(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("❌ scan failed, skipping cycle")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]Candidate, error) {
	pairs, err := s.src.Search(ctx, s.cfg.Query)
	if err != nil {
		return nil, err
	}
	ranked := Rank(pairs, s.cfg, now)
	log.Info().Int("pairs", len(pairs)).Int("candidates", len(ranked)).Msg("📊 scan complete")
	if len(ranked) == 0 {
		log.Info().Msg("🤷 No pairs met the filtering criteria")
		return nil, nil
	}

	for i, c := range ranked {
		log.Info().
			Int("rank", i+1).
			Str("pair", c.BaseSymbol+"/"+c.QuoteSymbol).
			Float64("change_m5", c.PriceChangeM5).
			Float64("vol_m5", c.VolumeM5).
			Float64("liq", c.LiquidityUSD).
			Float64("score", c.Score).
			Str("price", c.PriceUSD).
			Str("address", c.PairAddress).
			Msg("📈 mover")
	}

	if s.targetPath != "" {
		tok := ranked[0].Token()
		if err := target.Save(s.targetPath, tok); err != nil {
			return ranked, err
		}
		log.Info().Str("ticker", tok.Ticker).Str("pair", tok.PairAddress).Msg("🎯 target updated")
	}
	return ranked, nil
}

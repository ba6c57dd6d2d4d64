package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/candle"
	"archon/internal/metrics"
	"archon/internal/target"
)

type PairSource interface {
	Pair(ctx context.Context, pairAddress string) (*Pair, error)
}

type SOLPricer interface {
	USD(ctx context.Context) (float64, error)
}

type CandleStore interface {
	InsertCandle(ctx context.Context, c candle.Candle) error
	RecentCloses(ctx context.Context, pair string, at time.Time, limit int) ([]float64, error)
	LatestCandle(ctx context.Context, pair string) (*candle.Candle, error)
}

// PriceUSD returns the pair's USD price, derived from the native price and
// SOL/USD when DexScreener has no USD quote.
func PriceUSD(ctx context.Context, p *Pair, sol SOLPricer) (float64, error) {
	if usd := p.PriceUSDFloat(); usd > 0 {
		return usd, nil
	}
	native := p.PriceNativeFloat()
	if native <= 0 {
		return 0, fmt.Errorf("pair %s has no price", p.PairAddress)
	}
	if !strings.EqualFold(p.QuoteToken.Symbol, "SOL") {
		return 0, fmt.Errorf("pair %s is quoted in %s without a USD price", p.PairAddress, p.QuoteToken.Symbol)
	}
	solUSD, err := sol.USD(ctx)
	if err != nil {
		return 0, err
	}
	return native * solUSD, nil
}

// PriceFeed polls the target pair and turns the ticks into stored candles.
type PriceFeed struct {
	pairs      PairSource
	sol        SOLPricer
	store      CandleStore
	journal    candle.DojiJournal
	targetPath string
	interval   time.Duration
	threshold  float64

	token     target.Token
	builder   *candle.Builder
	prev      map[string]*candle.Candle
	lastPrice float64
}

func NewPriceFeed(pairs PairSource, sol SOLPricer, store CandleStore, cfg Config, targetPath string) *PriceFeed {
	return &PriceFeed{
		pairs:      pairs,
		sol:        sol,
		store:      store,
		journal:    candle.DojiJournal{Path: cfg.DojiJournal, Retention: cfg.DojiRetention},
		targetPath: targetPath,
		interval:   cfg.PriceInterval,
		threshold:  cfg.WhaleAlertThreshold,
		prev:       make(map[string]*candle.Candle),
	}
}

func (f *PriceFeed) Run(ctx context.Context) error {
	log.Info().Dur("interval", f.interval).Msg("Starting price fetcher for 1-min and 1-hour candles")
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		if err := f.Tick(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("price tick failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick fetches one price for the current target and finalizes any candles
// the tick closes.
func (f *PriceFeed) Tick(ctx context.Context, now time.Time) error {
	defer metrics.ObserveCycle("price", now)

	tok, err := target.Load(f.targetPath)
	if err != nil {
		return err
	}
	if f.builder == nil || tok != f.token {
		if f.builder != nil {
			log.Info().Str("from", f.token.Ticker).Str("to", tok.Ticker).Msg("🔄 target changed, resetting candles")
		}
		f.token = tok
		f.builder = candle.NewBuilder(tok.USDPair())
		f.lastPrice = 0
	}

	pair, err := f.pairs.Pair(ctx, tok.PairAddress)
	if err != nil {
		return fmt.Errorf("fetch pair: %w", err)
	}
	price, err := PriceUSD(ctx, pair, f.sol)
	if err != nil {
		return err
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return errors.New("invalid price")
	}

	if f.lastPrice > 0 {
		if move := math.Abs(price-f.lastPrice) / f.lastPrice; move > f.threshold {
			log.Warn().
				Str("ticker", tok.Ticker).
				Float64("from", f.lastPrice).
				Float64("to", price).
				Float64("move_pct", move*100).
				Msg("🐋 Whale alert: large price move")
		}
	}
	f.lastPrice = price
	log.Debug().Str("ticker", tok.Ticker).Float64("price_usd", price).Msg("price")

	for _, c := range f.builder.Add(now, price) {
		if err := f.finalize(ctx, c, now); err != nil {
			log.Error().Err(err).Str("pair", c.Pair).Time("ts", c.Timestamp).Msg("failed to store candle")
		}
	}
	return nil
}

func (f *PriceFeed) finalize(ctx context.Context, c candle.Candle, now time.Time) error {
	closes, err := f.store.RecentCloses(ctx, c.Pair, c.Timestamp, 50)
	if err != nil {
		return err
	}
	c.MA10, c.MA50 = candle.MovingAverages(closes)

	prev, ok := f.prev[c.Pair]
	if !ok {
		if prev, err = f.store.LatestCandle(ctx, c.Pair); err != nil {
			return err
		}
	}
	c.Doji = candle.DetectDoji(c, prev)

	if err := f.store.InsertCandle(ctx, c); err != nil {
		return err
	}
	stored := c
	f.prev[c.Pair] = &stored

	resolution := "1m"
	if strings.HasSuffix(c.Pair, candle.HourlySuffix) {
		resolution = "1h"
	}
	metrics.CandlesBuilt.WithLabelValues(resolution).Inc()

	emoji, kind := c.Kind()
	log.Info().
		Str("pair", c.Pair).
		Time("ts", c.Timestamp).
		Float64("open", c.Open).
		Float64("high", c.High).
		Float64("low", c.Low).
		Float64("close", c.Close).
		Str("doji", c.Doji).
		Msgf("%s %s %s candle stored", emoji, resolution, kind)

	if err := f.journal.Record(c, now); err != nil {
		log.Warn().Err(err).Msg("failed to update doji journal")
	}
	return nil
}

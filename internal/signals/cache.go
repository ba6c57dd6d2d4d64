package signals

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/candle"
	"archon/internal/metrics"
	"archon/internal/target"
	"archon/internal/whale"
)

var ErrNoData = errors.New("no signal data for token")

// whaleTradeSlack widens the whale lookup window past the aggregate window.
const whaleTradeSlack = 5 * time.Second

// Store is the read side the cache aggregates from.
type Store interface {
	CandlesSince(ctx context.Context, pair string, since time.Time) ([]candle.Candle, error)
	LatestCandle(ctx context.Context, pair string) (*candle.Candle, error)
	TradeAggregates(ctx context.Context, token string, since time.Time) ([]TradeAggregate, error)
	LatestWhaleTrade(ctx context.Context, token string, classes []string, since time.Time) (*WhaleTrade, error)
}

type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Cache holds the latest snapshot for the current target token. Price and
// trade fields are refreshed independently.
type Cache struct {
	store      Store
	targetPath string
	window     time.Duration
	pub        Publisher
	now        func() time.Time

	mu      sync.RWMutex
	snap    Snapshot
	updated time.Time
}

func NewCache(store Store, targetPath string, window time.Duration) *Cache {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Cache{
		store:      store,
		targetPath: targetPath,
		window:     window,
		now:        func() time.Time { return time.Now().UTC() },
		snap:       Placeholder("", 0, time.Time{}),
	}
}

// SetPublisher mirrors every refreshed snapshot to p.
func (c *Cache) SetPublisher(p Publisher) { c.pub = p }

// Run refreshes prices and trades on their own tickers until ctx is done.
func (c *Cache) Run(ctx context.Context, priceEvery, tradeEvery time.Duration) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.loop(ctx, "price", priceEvery, c.RefreshPrice)
	}()
	go func() {
		defer wg.Done()
		c.loop(ctx, "trades", tradeEvery, c.RefreshTrades)
	}()
	wg.Wait()
}

func (c *Cache) loop(ctx context.Context, kind string, every time.Duration, refresh func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := refresh(ctx); err != nil {
			log.Error().Err(err).Str("kind", kind).Msg("🚨 refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshPrice rebuilds price, trends, doji signal and candle stats from the
// candles of the last window.
func (c *Cache) RefreshPrice(ctx context.Context) (err error) {
	defer func() { countRefresh("price", err) }()

	tok, err := target.Load(c.targetPath)
	if err != nil {
		return err
	}
	now := c.now()
	pair := tok.USDPair()
	candles, err := c.store.CandlesSince(ctx, pair, now.Add(-c.window).Truncate(time.Minute))
	if err != nil {
		return err
	}

	var (
		price  float64
		trends *Trends
		doji   *string
		stats  = candle.Stats{DojiCounts: map[string]int{}}
	)
	if len(candles) == 0 {
		latest, err := c.store.LatestCandle(ctx, pair)
		if err != nil {
			return err
		}
		if latest != nil {
			price = latest.Close
		}
		candles = []candle.Candle{}
		log.Warn().Str("pair", pair).Float64("price", price).Msg("⚠️ No candlestick data available, using latest stored close")
	} else {
		newest := candles[0]
		price = newest.Close
		closes := make([]float64, len(candles))
		for i, cd := range candles {
			closes[i] = cd.Close
		}
		trends = &Trends{
			AvgPriceLast10: candle.Mean(closes),
			IsBullish:      newest.Close > newest.Open,
		}
		if len(closes) > 1 {
			if m := candle.Mean(closes); m != 0 {
				trends.PriceVolatility = candle.StdDev(closes) / m
			}
		}
		for _, cd := range candles {
			if cd.IsDoji() {
				d := cd.Doji
				doji = &d
				break
			}
		}
		stats = candle.TrendStats(candles)
	}

	c.mu.Lock()
	c.switchToken(tok.Ticker)
	c.snap.Price = price
	c.snap.Trends = trends
	c.snap.DojiSignal = doji
	c.snap.CandleTrend = candles
	c.snap.TrendStats = stats
	c.touch(now)
	snap := c.copyLocked()
	c.mu.Unlock()

	if doji != nil {
		log.Info().Str("doji", *doji).Msg("⭐ Updated Doji signal")
	}
	log.Info().Str("token", tok.Ticker).Float64("price", price).Msg("🤑 Price updated")
	c.publish(ctx, snap)
	return nil
}

// RefreshTrades rebuilds counts, classifications, the sea-life score and
// the latest whale trade from whale detections of the last window.
func (c *Cache) RefreshTrades(ctx context.Context) (err error) {
	defer func() { countRefresh("trades", err) }()

	tok, err := target.Load(c.targetPath)
	if err != nil {
		return err
	}
	now := c.now()
	aggs, err := c.store.TradeAggregates(ctx, tok.Ticker, now.Add(-c.window))
	if err != nil {
		return err
	}
	wt, err := c.store.LatestWhaleTrade(ctx, tok.Ticker, whale.WhaleClasses, now.Add(-c.window-whaleTradeSlack))
	if err != nil {
		return err
	}

	sum := Summarize(aggs)
	var last *time.Time
	if wt != nil {
		wt.AmountSOL = wt.Amount / VolumeDivisor
		t := wt.DetectedAt
		last = &t
	}

	c.mu.Lock()
	c.switchToken(tok.Ticker)
	c.snap.Buys = sum.Buys
	c.snap.Sells = sum.Sells
	c.snap.Holds = sum.Holds
	c.snap.Classifications = sum.Classifications
	c.snap.SeaLifeScore = whale.Score(sum.Classifications, sum.Volume)
	c.snap.WhaleTrade = wt
	c.snap.LastTradeTime = last
	c.snap.TradeTrend = sum.Trend
	c.touch(now)
	snap := c.copyLocked()
	c.mu.Unlock()

	log.Info().
		Str("token", tok.Ticker).
		Int("buys", sum.Buys).
		Int("sells", sum.Sells).
		Int("holds", sum.Holds).
		Float64("score", snap.SeaLifeScore).
		Msg("🐳 Trades updated")
	c.publish(ctx, snap)
	return nil
}

// TradeSummary is the reduction of one window of trade aggregates.
type TradeSummary struct {
	Buys, Sells, Holds int
	Volume             float64
	Classifications    map[string]int
	Trend              []MinuteTrades
}

// Summarize totals aggregates per side and class. Volume counts buy and sell
// amounts only, in VolumeDivisor units. The trend is oldest minute first.
func Summarize(aggs []TradeAggregate) TradeSummary {
	sum := TradeSummary{Classifications: map[string]int{}, Trend: []MinuteTrades{}}
	perMinute := map[time.Time]*MinuteTrades{}
	for _, a := range aggs {
		m, ok := perMinute[a.Minute]
		if !ok {
			m = &MinuteTrades{Minute: a.Minute}
			perMinute[a.Minute] = m
		}
		switch whale.Side(a.Side) {
		case whale.Buy:
			sum.Buys += a.Count
			m.Buys += a.Count
			sum.Volume += a.TotalAmount / VolumeDivisor
		case whale.Sell:
			sum.Sells += a.Count
			m.Sells += a.Count
			sum.Volume += a.TotalAmount / VolumeDivisor
		case whale.Hold:
			sum.Holds += a.Count
			m.Holds += a.Count
		}
		if a.Classification != "" {
			sum.Classifications[a.Classification] += a.Count
		}
	}
	for _, m := range perMinute {
		sum.Trend = append(sum.Trend, *m)
	}
	sort.Slice(sum.Trend, func(i, j int) bool { return sum.Trend[i].Minute.Before(sum.Trend[j].Minute) })
	return sum
}

// Snapshot returns the cached data for ticker, or a placeholder when the
// cache was never refreshed or holds another token.
func (c *Cache) Snapshot(ticker string) (Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.updated.IsZero() || c.snap.Token != ticker {
		ts := c.updated
		if ts.IsZero() {
			ts = c.now()
		}
		return Placeholder(ticker, c.snap.Price, ts), ErrNoData
	}
	return c.copyLocked(), nil
}

// switchToken clears everything cached for a previous token.
func (c *Cache) switchToken(ticker string) {
	if c.snap.Token == ticker {
		return
	}
	if c.snap.Token != "" {
		log.Info().Str("from", c.snap.Token).Str("to", ticker).Msg("🔄 target changed, clearing signal cache")
	}
	c.snap = Placeholder(ticker, 0, time.Time{})
	c.snap.Message = ""
	c.updated = time.Time{}
}

func (c *Cache) touch(now time.Time) {
	c.updated = now
	c.snap.Timestamp = now
}

func (c *Cache) copyLocked() Snapshot {
	s := c.snap
	s.Classifications = make(map[string]int, len(c.snap.Classifications))
	for k, v := range c.snap.Classifications {
		s.Classifications[k] = v
	}
	if c.snap.WhaleTrade != nil {
		wt := *c.snap.WhaleTrade
		s.WhaleTrade = &wt
	}
	return s
}

func (c *Cache) publish(ctx context.Context, s Snapshot) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, s); err != nil {
		log.Warn().Err(err).Msg("failed to mirror snapshot")
	}
}

func countRefresh(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SignalRefreshes.WithLabelValues(kind, result).Inc()
}

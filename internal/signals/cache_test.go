package signals

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archon/internal/candle"
	"archon/internal/target"
)

type fakeStore struct {
	candles   []candle.Candle
	latest    *candle.Candle
	aggs      []TradeAggregate
	whale     *WhaleTrade
	err       error
	pair      string
	since     time.Time
	whaleFrom time.Time
	classes   []string
}

func (f *fakeStore) CandlesSince(_ context.Context, pair string, since time.Time) ([]candle.Candle, error) {
	f.pair, f.since = pair, since
	return f.candles, f.err
}

func (f *fakeStore) LatestCandle(context.Context, string) (*candle.Candle, error) {
	return f.latest, f.err
}

func (f *fakeStore) TradeAggregates(_ context.Context, _ string, since time.Time) ([]TradeAggregate, error) {
	f.since = since
	return f.aggs, f.err
}

func (f *fakeStore) LatestWhaleTrade(_ context.Context, _ string, classes []string, since time.Time) (*WhaleTrade, error) {
	f.classes, f.whaleFrom = classes, since
	return f.whale, f.err
}

type capturePublisher struct{ got []Snapshot }

func (p *capturePublisher) Publish(_ context.Context, s Snapshot) error {
	p.got = append(p.got, s)
	return nil
}

var testNow = time.Date(2025, 3, 1, 12, 30, 20, 0, time.UTC)

func newTestCache(t *testing.T, store Store) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target_constants.json")
	require.NoError(t, target.Save(path, target.Default))
	c := NewCache(store, path, 15*time.Minute)
	c.now = func() time.Time { return testNow }
	return c, path
}

func TestSnapshotPlaceholderBeforeRefresh(t *testing.T) {
	c, _ := newTestCache(t, &fakeStore{})
	snap, err := c.Snapshot("BABY")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, "BABY", snap.Token)
	assert.Equal(t, NoDataMessage, snap.Message)
	assert.Equal(t, testNow, snap.Timestamp)
	assert.Empty(t, snap.Classifications)
}

func TestRefreshPriceFromCandles(t *testing.T) {
	ma := 1.0
	store := &fakeStore{candles: []candle.Candle{
		{Pair: "BABY/USD", Open: 1.0, Close: 1.2, High: 1.3, Low: 0.9, Doji: candle.DojiNone, MA10: &ma},
		{Pair: "BABY/USD", Open: 1.0, Close: 1.0, High: 1.1, Low: 0.9, Doji: candle.DojiBull},
		{Pair: "BABY/USD", Open: 0.8, Close: 0.8, High: 0.9, Low: 0.7, Doji: candle.DojiBear},
	}}
	c, _ := newTestCache(t, store)
	pub := &capturePublisher{}
	c.SetPublisher(pub)

	require.NoError(t, c.RefreshPrice(context.Background()))
	assert.Equal(t, "BABY/USD", store.pair)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC), store.since)

	snap, err := c.Snapshot("BABY")
	require.NoError(t, err)
	assert.Equal(t, 1.2, snap.Price)
	require.NotNil(t, snap.Trends)
	assert.InDelta(t, 1.0, snap.Trends.AvgPriceLast10, 1e-9)
	assert.True(t, snap.Trends.IsBullish)
	assert.InDelta(t, candle.StdDev([]float64{1.2, 1.0, 0.8}), snap.Trends.PriceVolatility, 1e-9)
	require.NotNil(t, snap.DojiSignal)
	assert.Equal(t, candle.DojiBull, *snap.DojiSignal)
	assert.Equal(t, 1, snap.TrendStats.Bullish)
	assert.Equal(t, 2, snap.TrendStats.Doji)
	assert.Empty(t, snap.Message)
	require.Len(t, pub.got, 1)
}

func TestRefreshPriceWithoutCandlesUsesLatestClose(t *testing.T) {
	store := &fakeStore{latest: &candle.Candle{Close: 0.42}}
	c, _ := newTestCache(t, store)

	require.NoError(t, c.RefreshPrice(context.Background()))
	snap, err := c.Snapshot("BABY")
	require.NoError(t, err)
	assert.Equal(t, 0.42, snap.Price)
	assert.Nil(t, snap.Trends)
	assert.Nil(t, snap.DojiSignal)
	assert.NotNil(t, snap.CandleTrend)
	assert.Empty(t, snap.CandleTrend)
}

func TestRefreshTrades(t *testing.T) {
	m1 := time.Date(2025, 3, 1, 12, 20, 0, 0, time.UTC)
	m2 := m1.Add(time.Minute)
	detected := m2.Add(10 * time.Second)
	store := &fakeStore{
		aggs: []TradeAggregate{
			{Minute: m2, Side: "buy", Classification: "🐋", Count: 1, TotalAmount: 30e9},
			{Minute: m2, Side: "sell", Classification: "🐟", Count: 2, TotalAmount: 1e9},
			{Minute: m1, Side: "buy", Classification: "🐟", Count: 3, TotalAmount: 1e9},
			{Minute: m1, Side: "hold", Classification: "", Count: 4, TotalAmount: 5e9},
		},
		whale: &WhaleTrade{Wallet: "w", Token: "BABY", Side: "buy", Classification: "🐋", Amount: 2e12, DetectedAt: detected},
	}
	c, _ := newTestCache(t, store)

	require.NoError(t, c.RefreshTrades(context.Background()))
	assert.Equal(t, testNow.Add(-15*time.Minute), store.since)
	assert.Equal(t, testNow.Add(-15*time.Minute-5*time.Second), store.whaleFrom)
	assert.Equal(t, []string{"🐋", "🐳", "🦈"}, store.classes)

	snap, err := c.Snapshot("BABY")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Buys)
	assert.Equal(t, 2, snap.Sells)
	assert.Equal(t, 4, snap.Holds)
	assert.Equal(t, map[string]int{"🐋": 1, "🐟": 5}, snap.Classifications)
	// volume 32, factor capped at 2: (2.0*1 + 0.01*5) * 3
	assert.InDelta(t, 6.15, snap.SeaLifeScore, 1e-9)
	require.NotNil(t, snap.WhaleTrade)
	assert.Equal(t, 2000.0, snap.WhaleTrade.AmountSOL)
	require.NotNil(t, snap.LastTradeTime)
	assert.Equal(t, detected, *snap.LastTradeTime)
	require.Len(t, snap.TradeTrend, 2)
	assert.Equal(t, MinuteTrades{Minute: m1, Buys: 3, Holds: 4}, snap.TradeTrend[0])
	assert.Equal(t, MinuteTrades{Minute: m2, Buys: 1, Sells: 2}, snap.TradeTrend[1])
}

func TestSnapshotOtherTokenIsPlaceholder(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{latest: &candle.Candle{Close: 0.5}})
	require.NoError(t, c.RefreshPrice(context.Background()))

	require.NoError(t, target.Save(path, target.Token{Ticker: "FOO", MintAddress: "m", PairAddress: "p"}))
	snap, err := c.Snapshot("FOO")
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, "FOO", snap.Token)
	assert.Equal(t, 0.5, snap.Price)
	assert.Equal(t, NoDataMessage, snap.Message)
}

func TestTokenSwitchClearsTrades(t *testing.T) {
	store := &fakeStore{aggs: []TradeAggregate{{Minute: testNow, Side: "buy", Classification: "🐟", Count: 9}}}
	c, path := newTestCache(t, store)
	require.NoError(t, c.RefreshTrades(context.Background()))

	store.aggs = nil
	require.NoError(t, target.Save(path, target.Token{Ticker: "FOO", MintAddress: "m", PairAddress: "p"}))
	require.NoError(t, c.RefreshPrice(context.Background()))

	snap, err := c.Snapshot("FOO")
	require.NoError(t, err)
	assert.Zero(t, snap.Buys)
	assert.Empty(t, snap.Classifications)
}

func TestRefreshErrors(t *testing.T) {
	c, _ := newTestCache(t, &fakeStore{err: errors.New("db down")})
	assert.Error(t, c.RefreshPrice(context.Background()))
	assert.Error(t, c.RefreshTrades(context.Background()))
	_, err := c.Snapshot("BABY")
	assert.ErrorIs(t, err, ErrNoData)
}

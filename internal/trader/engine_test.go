package trader

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archon/internal/candle"
	"archon/internal/signals"
	"archon/internal/target"
)

var engineNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSignals struct {
	snap  signals.Snapshot
	err   error
	calls int
}

func (f *fakeSignals) Fetch(_ context.Context, ticker string) (signals.Snapshot, error) {
	f.calls++
	s := f.snap
	s.Token = ticker
	return s, f.err
}

type fixedSOL float64

func (p fixedSOL) USD(context.Context) (float64, error) { return float64(p), nil }

type failingSwapper struct {
	err       error
	slippages []float64
}

func (s *failingSwapper) Swap(_ context.Context, req SwapRequest) (SwapResult, error) {
	s.slippages = append(s.slippages, req.Slippage)
	return SwapResult{}, s.err
}

// landedSwapper fills on the paper wallet but then reports an error, the
// way a script does when it fails after sending the transaction.
type landedSwapper struct {
	wallet *PaperWallet
	calls  int
}

func (s *landedSwapper) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	s.calls++
	res, err := s.wallet.Swap(ctx, req)
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{TxID: res.TxID}, errors.New("swap script failed: exit status 1")
}

// lateWallet applies a sent swap only on the second balance read after it.
type lateWallet struct {
	*PaperWallet
	pending *SwapRequest
	reads   int
	calls   int
}

func (w *lateWallet) Swap(_ context.Context, req SwapRequest) (SwapResult, error) {
	w.calls++
	w.pending = &req
	w.reads = 0
	return SwapResult{TxID: "late-tx"}, nil
}

func (w *lateWallet) SOL(ctx context.Context) (float64, error) {
	if w.pending != nil {
		w.reads++
		if w.reads > 1 {
			req := *w.pending
			w.pending = nil
			if _, err := w.PaperWallet.Swap(ctx, req); err != nil {
				return 0, err
			}
		}
	}
	return w.PaperWallet.SOL(ctx)
}

type fakeCandles struct {
	candles []candle.Candle
	pair    string
}

func (f *fakeCandles) CandlesSince(_ context.Context, pair string, _ time.Time) ([]candle.Candle, error) {
	f.pair = pair
	return f.candles, nil
}

func uptrendSnapshot() signals.Snapshot {
	return signals.Snapshot{
		Price:        0.01,
		SeaLifeScore: 10,
		Buys:         12,
		Sells:        10,
		CandleTrend: []candle.Candle{
			bar(0.0090, 0.0095, ptr(0.0095), ptr(0.0090)),
			bar(0.0092, 0.0096, ptr(0.0095), ptr(0.0090)),
		},
	}
}

func newTestEngine(t *testing.T, src signals.Source, wallet *PaperWallet, swapper Swapper) (*Engine, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StatePath = filepath.Join(dir, "state.json")
	cfg.JournalPath = filepath.Join(dir, "trades.jsonl")
	if swapper == nil {
		swapper = wallet
	}
	out := &bytes.Buffer{}
	e := New(cfg, target.Default, Deps{
		Signals: src,
		SOL:     fixedSOL(100),
		Wallet:  wallet,
		Swapper: swapper,
		Out:     out,
	})
	e.now = func() time.Time { return engineNow }
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	e.jitter = func() time.Duration { return 0 }
	return e, out
}

func TestBootRecordsInitialBalance(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	e, _ := newTestEngine(t, &fakeSignals{}, w, nil)

	require.NoError(t, e.Boot(context.Background()))
	require.NotNil(t, e.State().InitialSOLBalance)
	assert.Equal(t, 1.0, *e.State().InitialSOLBalance)
	assert.InDelta(t, 1, e.Tracker().SOLLiquid, 1e-12)
	assert.Zero(t, e.Tracker().SOLTrimmed)

	// A later boot keeps the first balance.
	w.SOLBalance = 3
	require.NoError(t, e.Boot(context.Background()))
	assert.Equal(t, 1.0, *e.State().InitialSOLBalance)
	assert.InDelta(t, 3, e.Tracker().SOLLiquid, 1e-12)
}

func TestSnipeBuysOnce(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, nil)
	ctx := context.Background()
	require.NoError(t, e.Boot(ctx))

	res, err := e.Snipe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionSnipe, res.Action)
	assert.InDelta(t, 6700, e.Tracker().TokenAmount, 1e-6)
	assert.InDelta(t, 0.67, e.Tracker().CurrentRoll, 1e-9)
	assert.InDelta(t, 0.01, e.Tracker().AvgBuyPrice, 1e-12)
	assert.InDelta(t, 0.01*1.015, res.ExitTarget, 1e-12)
	assert.True(t, e.State().InitialSnipeDone)
	require.Len(t, e.State().TradeHistory, 1)
	assert.Equal(t, TradeBuy, e.State().TradeHistory[0].Action)

	res, err = e.Snipe(ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipSnipe, res.Action)
	assert.Len(t, e.State().TradeHistory, 1)
}

func TestSnipeSkippedWithoutFunds(t *testing.T) {
	w := NewPaperWallet(0.005, Journal{})
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Snipe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionHold, res.Action)
	assert.True(t, e.State().InitialSnipeDone)
}

func TestCycleHoldsWithoutSignals(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	src := &fakeSignals{err: signals.ErrNoData}
	e, _ := newTestEngine(t, src, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionHold, res.Action)
	assert.Equal(t, "Signals unavailable", res.Reason)
	assert.Empty(t, e.State().TradeHistory)

	_, err = e.fetchSignals(context.Background())
	assert.ErrorIs(t, err, ErrSignalsUnavailable)
	assert.ErrorIs(t, err, signals.ErrNoData)
}

func TestCycleBuysOnUptrend(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, res.Action, res.Reason)
	assert.Equal(t, Uptrend, res.Trend)
	assert.Contains(t, res.Reason, "Bought 1500.00 BABY for 0.150000 SOL")
	assert.InDelta(t, 1500, e.Tracker().TokenAmount, 1e-6)
	assert.InDelta(t, 0.01*1.015, e.State().ExitTarget, 1e-12)
	assert.Equal(t, 100.0, e.State().SOLPrice)

	st, err := LoadState(e.cfg.StatePath, engineNow)
	require.NoError(t, err)
	require.Len(t, st.TradeHistory, 1)
	assert.Equal(t, TradeBuy, st.TradeHistory[0].Action)
	assert.FileExists(t, e.cfg.JournalPath)
}

func TestCycleSellsAtTarget(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	w.TokenBalance = 1000
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, nil)
	require.NoError(t, e.Boot(context.Background()))
	tr := e.Tracker()
	tr.AvgBuyPrice = 0.008
	tr.CurrentRoll = 0.08
	tr.LastTradeTime = engineNow.Add(-10 * time.Minute)

	res, err := e.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionSell, res.Action, res.Reason)
	assert.Contains(t, res.Reason, "due to exit target")

	gross := 1000 * 0.01 / 100
	proceeds := gross * (1 - PaperFeePercent)
	st := e.State()
	assert.Equal(t, 1, st.FlipCount)
	assert.InDelta(t, proceeds-0.08, st.LastPL, 1e-9)
	assert.Zero(t, tr.TokenAmount)
	assert.Zero(t, tr.CurrentRoll)
	assert.InDelta(t, 0.01*1.015, st.ExitTarget, 1e-12)
	assert.InDelta(t, proceeds*0.35, tr.SOLTrimmed, 1e-9)
	require.Len(t, st.TradeHistory, 1)
	assert.Equal(t, TradeSell, st.TradeHistory[0].Action)
	assert.InDelta(t, 0.008, st.TradeHistory[0].AvgBuyPrice, 1e-12)
}

func TestCycleFallsBackToStoredCandles(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	snap := uptrendSnapshot()
	snap.CandleTrend = nil
	e, _ := newTestEngine(t, &fakeSignals{snap: snap}, w, nil)
	store := &fakeCandles{candles: uptrendSnapshot().CandleTrend}
	e.deps.Candles = store
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BABY/USD", store.pair)
	assert.Equal(t, Uptrend, res.Trend)
}

func TestCycleAbortsOnInvalidEndpoint(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	swapper := &failingSwapper{err: ErrInvalidEndpoint}
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, swapper)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Cycle(context.Background())
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
	assert.Equal(t, ActionBuy, res.Action)
	assert.Len(t, swapper.slippages, 1)
	require.Len(t, e.State().TradeHistory, 1)
	assert.Equal(t, TradeBuyFailed, e.State().TradeHistory[0].Action)
}

func TestExecuteRetriesWithWiderSlippage(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	swapper := &failingSwapper{err: errors.New("boom")}
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, swapper)
	require.NoError(t, e.Boot(context.Background()))

	f, err := e.execute(context.Background(), true, 0.1, 0.01, 100)
	require.NoError(t, err)
	assert.Zero(t, f.Out)
	require.Len(t, swapper.slippages, 3)
	assert.InDelta(t, 0.005, swapper.slippages[0], 1e-12)
	assert.InDelta(t, 0.006, swapper.slippages[1], 1e-12)
	assert.InDelta(t, 0.007, swapper.slippages[2], 1e-12)
}

func TestExecuteMeasuresLandedSwapBeforeRetrying(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	swapper := &landedSwapper{wallet: w}
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, swapper)
	require.NoError(t, e.Boot(context.Background()))

	f, err := e.execute(context.Background(), true, 0.1, 0.01, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, swapper.calls)
	assert.True(t, strings.HasPrefix(f.TxID, "paper-"))
	assert.InDelta(t, 1000, f.Out, 1e-6)
	assert.Equal(t, 0.01, f.Price)
	assert.InDelta(t, 1000, e.Tracker().TokenAmount, 1e-6)
	assert.InDelta(t, 1000, w.TokenBalance, 1e-6)
}

func TestExecuteWaitsForLateFill(t *testing.T) {
	lw := &lateWallet{PaperWallet: NewPaperWallet(1, Journal{})}
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, lw.PaperWallet, lw)
	e.deps.Wallet = lw
	require.NoError(t, e.Boot(context.Background()))

	f, err := e.execute(context.Background(), true, 0.1, 0.01, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, lw.calls)
	assert.Equal(t, "late-tx", f.TxID)
	assert.InDelta(t, 1000, f.Out, 1e-6)
	assert.InDelta(t, 1000, e.Tracker().TokenAmount, 1e-6)
}

func TestDumpSellsLeftovers(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	w.TokenBalance = 1000
	e, _ := newTestEngine(t, &fakeSignals{snap: uptrendSnapshot()}, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Dump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionDump, res.Action)
	assert.Zero(t, e.Tracker().TokenAmount)
	assert.InDelta(t, 0.1*(1-PaperFeePercent), e.State().LastCyclePL, 1e-9)
	require.Len(t, e.State().TradeHistory, 1)
	assert.Equal(t, TradeSell, e.State().TradeHistory[0].Action)
}

func TestDumpWithNothingToSell(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	src := &fakeSignals{snap: uptrendSnapshot()}
	e, _ := newTestEngine(t, src, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	res, err := e.Dump(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionDump, res.Action)
	assert.Equal(t, "No tokens to sell on startup", res.Reason)
	assert.Zero(t, src.calls)
}

func TestPrintSummary(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	w := NewPaperWallet(1, Journal{})
	e, out := newTestEngine(t, &fakeSignals{}, w, nil)
	require.NoError(t, e.Boot(context.Background()))

	e.PrintSummary(Result{
		Time:       engineNow,
		Signals:    SignalView{Price: 0.01, SeaLifeScore: 2.5, Buys: 3, Sells: 1, Doji: candle.DojiNone},
		Trend:      Uptrend,
		ExitTarget: 0.01015,
		Action:     ActionHold,
		Reason:     "waiting",
		Progress:   42,
	})
	s := out.String()
	assert.Contains(t, s, "Trade Summary - 2025-03-01 12:00:00")
	assert.Contains(t, s, "Sea Life Score: 2.50")
	assert.Contains(t, s, "SOL Liquid Available: 1.000000")
	assert.Contains(t, s, "Trend: uptrend")
	assert.Contains(t, s, "Progress to Exit: 42.0%")
	assert.Contains(t, s, "HOLD - waiting")
}

func TestPrintSummaryShowsPaperProfitability(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	ctx := context.Background()
	w := NewPaperWallet(1, Journal{})
	_, err := w.Swap(ctx, SwapRequest{Buy: true, Amount: 0.5, Price: 0.01, SOLPrice: 100})
	require.NoError(t, err)
	_, err = w.Swap(ctx, SwapRequest{Amount: 5000, Price: 0.012, SOLPrice: 100})
	require.NoError(t, err)

	e, out := newTestEngine(t, &fakeSignals{}, w, nil)
	e.PrintSummary(Result{Time: engineNow, Action: ActionHold, Reason: "waiting"})
	assert.Contains(t, out.String(), "Paper Trades: 1 | Profitable: 100.0% | Fees: 0.003300 SOL")

	// A live swapper gets no paper line.
	e, out = newTestEngine(t, &fakeSignals{}, w, &failingSwapper{})
	e.PrintSummary(Result{Time: engineNow, Action: ActionHold, Reason: "waiting"})
	assert.NotContains(t, out.String(), "Paper Trades")
}

func TestRunStopsOnCancel(t *testing.T) {
	w := NewPaperWallet(1, Journal{})
	e, _ := newTestEngine(t, &fakeSignals{err: signals.ErrNoData}, w, nil)
	e.cfg.SkipSnipe = true

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		calls++
		if calls > 3 {
			cancel()
		}
		return ctx.Err()
	}
	assert.NoError(t, e.Run(ctx))
}

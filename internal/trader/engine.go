// Package trader runs the buy/sell loop: it reads market signals, keeps a
// tracker of the open position in sync with the wallet, decides, and swaps
// through the external Raydium script.
package trader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/candle"
	"archon/internal/metrics"
	"archon/internal/signals"
	"archon/internal/target"
)

// ErrSignalsUnavailable means the loop has nothing to decide on and holds.
var ErrSignalsUnavailable = errors.New("signals unavailable")

type CandleSource interface {
	CandlesSince(ctx context.Context, pair string, since time.Time) ([]candle.Candle, error)
}

type SOLPricer interface {
	USD(ctx context.Context) (float64, error)
}

// Deps are the engine's collaborators. Candles and SOL are optional.
type Deps struct {
	Signals signals.Source
	Candles CandleSource
	SOL     SOLPricer
	Wallet  Wallet
	Swapper Swapper
	Out     io.Writer
}

type Engine struct {
	cfg     Config
	token   target.Token
	deps    Deps
	journal Journal
	out     io.Writer

	state   *State
	tracker *Tracker

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func New(cfg Config, token target.Token, deps Deps) *Engine {
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	e := &Engine{
		cfg:     cfg,
		token:   token,
		deps:    deps,
		journal: Journal{Path: cfg.JournalPath},
		out:     out,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleepCtx,
	}
	e.jitter = e.latency
	return e
}

func (e *Engine) State() *State     { return e.state }
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Run boots, runs the optional snipe and dump, then cycles until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Boot(ctx); err != nil {
		return err
	}
	initial := e.initialSOL()
	log.Info().
		Str("ticker", e.token.Ticker).
		Float64("initial_sol", initial).
		Float64("snipe_sol", min(initial*e.cfg.SniperPercentage, initial)).
		Bool("dry_run", e.cfg.DryRun).
		Msg("🎯 Trader started")

	res, err := e.Snipe(ctx)
	e.report(res, err)

	if e.cfg.DumpOnBoot && (e.cfg.SkipSnipe || e.state.InitialSnipeDone) {
		res, err := e.Dump(ctx)
		e.report(res, err)
	}

	for {
		res, err := e.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		e.report(res, err)
		if err := e.sleep(ctx, e.cfg.UpdateInterval); err != nil {
			return nil
		}
	}
}

// Boot loads the state file and syncs the tracker with the wallet. The
// first boot records the initial SOL balance profit/loss is measured from.
func (e *Engine) Boot(ctx context.Context) error {
	now := e.now()
	st, err := LoadState(e.cfg.StatePath, now)
	if err != nil {
		return err
	}
	e.state = st

	sol, tokens := e.refreshBalances(ctx)
	if st.InitialSOLBalance == nil {
		initial := sol
		st.InitialSOLBalance = &initial
		log.Info().Float64("sol", initial).Msg("💰 Initial SOL balance")
	}

	e.tracker = NewTracker(e.cfg, st.Tracker)
	e.tracker.SyncWithWallet(now, sol, tokens, true)
	log.Info().
		Float64("liquid", e.tracker.SOLLiquid).
		Float64("trimmed", e.tracker.SOLTrimmed).
		Float64("tokens", e.tracker.TokenAmount).
		Msg("🎯 Tracker synced with wallet")
	e.save()
	return nil
}

// Snipe buys SniperPercentage of the initial balance once per state file.
func (e *Engine) Snipe(ctx context.Context) (Result, error) {
	now := e.now()
	res := Result{Time: now, Trend: NoTrend}
	if e.cfg.SkipSnipe || e.state.InitialSnipeDone {
		log.Info().
			Bool("skip_snipe", e.cfg.SkipSnipe).
			Bool("initial_snipe_done", e.state.InitialSnipeDone).
			Msg("ℹ️ Skipping initial snipe")
		res.Action, res.Reason = ActionSkipSnipe, "Snipe skipped due to configuration or prior completion"
		return res, nil
	}
	if e.tracker.SOLLiquid < e.cfg.MinLiquidReserve+e.cfg.MinSOLForTrade {
		res.Action = ActionHold
		res.Reason = fmt.Sprintf("Insufficient SOL for snipe: %.6f available", e.tracker.SOLLiquid)
		log.Warn().Msg("⚠️ " + res.Reason)
		e.state.InitialSnipeDone = true
		return e.finish(res), nil
	}

	snap, err := e.fetchSignals(ctx)
	if err == nil && snap.Price <= 0 {
		err = fmt.Errorf("%w: invalid price %v", ErrSignalsUnavailable, snap.Price)
	}
	if err != nil {
		res.Action, res.Reason = ActionSnipeFailed, err.Error()
		return res, err
	}
	res.Signals = viewOf(snap)

	amount := min(e.initialSOL()*e.cfg.SniperPercentage, e.tracker.SOLLiquid-e.cfg.MinLiquidReserve)
	log.Info().
		Float64("sol", amount).
		Str("ticker", e.token.Ticker).
		Float64("price", snap.Price).
		Msg("🔫 Executing initial snipe")

	f, err := e.execute(ctx, true, amount, snap.Price, e.solUSD(ctx))
	if err == nil && f.Out > 0 {
		exit := e.tracker.AvgBuyPrice * (1 + e.cfg.ProfitThreshold)
		e.state.ExitTarget = exit
		e.recordTrade(TradeRecord{
			Timestamp:    now,
			Action:       TradeBuy,
			Amount:       f.Out,
			SOLAmount:    amount,
			Price:        f.Price,
			TxID:         f.TxID,
			SeaLifeScore: snap.SeaLifeScore,
			AvgBuyPrice:  e.tracker.AvgBuyPrice,
			ExitTarget:   exit,
		})
		res.Action = ActionSnipe
		res.Reason = fmt.Sprintf("Bought %.2f %s for %.6f SOL", f.Out, e.token.Ticker, amount)
		res.ExitTarget = exit
		log.Info().Str("txid", f.TxID).Float64("avg_buy_price", e.tracker.AvgBuyPrice).Msg("🔫 " + res.Reason)
	} else {
		res.Action, res.Reason = ActionSnipeFailed, "Failed (no tokens)"
		if err != nil {
			res.Reason = "Failed: " + err.Error()
		}
		log.Warn().Err(err).Msg("⚠️ Snipe failed")
	}
	e.state.InitialSnipeDone = true
	return e.finish(res), err
}

// Dump sells the whole position left over from a previous run.
func (e *Engine) Dump(ctx context.Context) (Result, error) {
	now := e.now()
	res := Result{Time: now, Trend: NoTrend}
	sol, tokens := e.refreshBalances(ctx)
	e.tracker.SyncWithWallet(now, sol, tokens, true)
	log.Info().Float64("sol", sol).Float64("tokens", tokens).Msg("🛑 Dump on boot: fetched balances")

	if e.tracker.TokenAmount <= 0 {
		log.Info().Msg("ℹ️ Dump on boot: no tokens to sell")
		res.Action, res.Reason = ActionDump, "No tokens to sell on startup"
		return e.finish(res), nil
	}

	snap, err := e.fetchSignals(ctx)
	if err == nil && snap.Price <= 0 {
		err = fmt.Errorf("%w: invalid price %v", ErrSignalsUnavailable, snap.Price)
	}
	if err != nil {
		res.Action, res.Reason = ActionDumpFailed, err.Error()
		return res, err
	}
	res.Signals = viewOf(snap)
	price := snap.Price
	trend, exit := DetectTrend(nil, price, e.tracker.AvgBuyPrice, e.cfg.ProfitThreshold)
	res.Trend, res.ExitTarget = trend, exit

	amount := e.tracker.TokenAmount
	rollBefore, avgBefore := e.tracker.CurrentRoll, e.tracker.AvgBuyPrice
	log.Info().Float64("tokens", amount).Float64("price", price).Msg("🛑 Dump on boot: selling")

	f, err := e.execute(ctx, false, amount, price, e.solUSD(ctx))
	if err == nil && f.Out > 0 {
		profit := f.Out - rollBefore
		e.state.LastCyclePL = profit
		e.recordTrade(TradeRecord{
			Timestamp:   now,
			Action:      TradeSell,
			Amount:      amount,
			SOLAmount:   f.Out,
			Price:       price,
			TxID:        f.TxID,
			Profit:      profit,
			AvgBuyPrice: avgBefore,
			ExitTarget:  exit,
		})
		res.Action = ActionDump
		res.Reason = fmt.Sprintf("Sold %.2f %s for %.6f SOL on startup, Profit=%.6f", amount, e.token.Ticker, f.Out, profit)
		log.Info().Str("txid", f.TxID).Msg("🛑 " + res.Reason)
	} else {
		res.Action, res.Reason = ActionDumpFailed, "Failed to sell tokens on startup"
		log.Error().Err(err).Msg("🚨 Dump on boot failed")
	}
	return e.finish(res), err
}

// Cycle runs one decision round.
func (e *Engine) Cycle(ctx context.Context) (Result, error) {
	defer metrics.ObserveCycle("trader", time.Now())
	if err := e.sleep(ctx, e.jitter()); err != nil {
		return Result{}, err
	}
	now := e.now()
	res := Result{Time: now, Trend: Sideways}

	snap, err := e.fetchSignals(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Holding without signals")
		metrics.Decisions.WithLabelValues(string(ActionHold)).Inc()
		res.Trend, res.Action, res.Reason = NoTrend, ActionHold, "Signals unavailable"
		return res, nil
	}
	res.Signals = viewOf(snap)
	price := snap.Price
	if price <= 0 {
		log.Error().Float64("price", price).Msg("🚨 Invalid price from API, skipping trade")
		metrics.Decisions.WithLabelValues(string(ActionHold)).Inc()
		res.Action, res.Reason = ActionHold, "Invalid price from API"
		return res, nil
	}

	solPrice := e.solUSD(ctx)
	e.state.SOLPrice = solPrice
	solBal, tokenBal := e.refreshBalances(ctx)
	t := e.tracker
	t.SyncWithWallet(now, solBal, tokenBal, true)

	if t.TokenAmount > 0 && (t.AvgBuyPrice <= 0 || t.AvgBuyPrice > price*1000 || t.AvgBuyPrice < price/1000) {
		log.Warn().Float64("avg_buy_price", t.AvgBuyPrice).Msg("⚠️ Invalid avg buy price, resetting to current price")
		t.AvgBuyPrice = price
	}

	candles := e.loadCandles(ctx, snap, now)
	trend, exit := DetectTrend(candles, price, t.AvgBuyPrice, e.cfg.ProfitThreshold)
	if exit <= 0 || exit > price*100 {
		log.Warn().Float64("exit_target", exit).Msg("⚠️ Invalid exit target, resetting")
		exit = price * (1 + e.cfg.ProfitThreshold)
	}
	e.state.Trend15m, e.state.ExitTarget = trend, exit
	res.Trend, res.ExitTarget = trend, exit
	res.Progress = Progress(price, t.AvgBuyPrice, exit)
	res.UnrealizedPL = e.unrealizedPL(price, solPrice, solBal)

	if t.ObservePrice(now, price) {
		e.state.LastPriceUpdate = now
	}

	d := Decide(e.cfg, Input{
		Now:             now,
		Price:           price,
		SOLPrice:        solPrice,
		SeaLifeScore:    snap.SeaLifeScore,
		AvgSeaLifeScore: e.state.MarketTrends.AvgSeaLifeScore,
		Buys:            snap.Buys,
		Sells:           snap.Sells,
		Trend:           trend,
		ExitTarget:      exit,
		SOLLiquid:       t.SOLLiquid,
		TokenAmount:     t.TokenAmount,
		AvgBuyPrice:     t.AvgBuyPrice,
		LastTradeTime:   t.LastTradeTime,
		LastBuyAttempt:  t.LastBuyAttempt,
		LastSellAttempt: t.LastSellAttempt,
	})
	metrics.Decisions.WithLabelValues(string(d.Action)).Inc()
	res.Action, res.Reason = d.Action, d.Reason

	switch d.Action {
	case ActionBuy:
		res.Reason, err = e.buy(ctx, now, d, snap, solPrice)
	case ActionSell:
		res.Reason, err = e.sell(ctx, now, d, snap, solPrice)
	default:
		log.Debug().Str("reason", d.Reason).Msg("Holding")
	}

	log.Info().
		Float64("progress", res.Progress).
		Float64("unrealized_sol", res.UnrealizedPL).
		Float64("price", price).
		Float64("target", exit).
		Msg("🎮 Progress to exit target")
	return e.finish(res), err
}

func (e *Engine) buy(ctx context.Context, now time.Time, d Decision, snap signals.Snapshot, solPrice float64) (string, error) {
	f, err := e.execute(ctx, true, d.SOLAmount, snap.Price, solPrice)
	if err != nil || f.Out <= 0 {
		reason := fmt.Sprintf("❌ Buy failed: TXID=%s, Out=%v", f.TxID, f.Out)
		e.recordTrade(TradeRecord{
			Timestamp:    now,
			Action:       TradeBuyFailed,
			SOLAmount:    d.SOLAmount,
			Price:        snap.Price,
			TxID:         f.TxID,
			SeaLifeScore: snap.SeaLifeScore,
			AvgBuyPrice:  e.tracker.AvgBuyPrice,
			ExitTarget:   e.state.ExitTarget,
		})
		log.Warn().Err(err).Msg(reason)
		return reason, err
	}

	sol, tokens := e.refreshBalances(ctx)
	e.tracker.SyncWithWallet(e.now(), sol, tokens, true)
	exit := e.tracker.AvgBuyPrice * (1 + e.cfg.ProfitThreshold)
	e.state.ExitTarget = exit
	e.recordTrade(TradeRecord{
		Timestamp:    now,
		Action:       TradeBuy,
		Amount:       f.Out,
		SOLAmount:    d.SOLAmount,
		Price:        f.Price,
		TxID:         f.TxID,
		SeaLifeScore: snap.SeaLifeScore,
		AvgBuyPrice:  e.tracker.AvgBuyPrice,
		ExitTarget:   exit,
	})
	reason := fmt.Sprintf("Bought %.2f %s for %.6f SOL @ $%.8f", f.Out, e.token.Ticker, d.SOLAmount, f.Price)
	if d.AverageDown {
		reason += " to average down"
	}
	reason += ", TX=" + f.TxID
	log.Info().Msg("🖋️ " + reason)
	return reason, nil
}

func (e *Engine) sell(ctx context.Context, now time.Time, d Decision, snap signals.Snapshot, solPrice float64) (string, error) {
	rollBefore, avgBefore := e.tracker.CurrentRoll, e.tracker.AvgBuyPrice
	f, err := e.execute(ctx, false, d.TokenAmount, snap.Price, solPrice)
	if err != nil || f.Out <= 0 {
		reason := fmt.Sprintf("❌ Sell failed: TXID=%s, Out=%v", f.TxID, f.Out)
		e.recordTrade(TradeRecord{
			Timestamp:    now,
			Action:       TradeSellFailed,
			Amount:       d.TokenAmount,
			Price:        snap.Price,
			TxID:         f.TxID,
			SeaLifeScore: snap.SeaLifeScore,
			AvgBuyPrice:  avgBefore,
			ExitTarget:   e.state.ExitTarget,
		})
		log.Warn().Err(err).Msg(reason)
		return reason, err
	}

	sol, tokens := e.refreshBalances(ctx)
	e.tracker.SyncWithWallet(e.now(), sol, tokens, true)

	pl := f.Out - rollBefore
	st := e.state
	st.LastPL, st.LastCyclePL, st.LastSellPrice = pl, pl, snap.Price
	st.FlipCount++
	st.CycleStartTime = now
	e.recordTrade(TradeRecord{
		Timestamp:    now,
		Action:       TradeSell,
		Amount:       d.TokenAmount,
		SOLAmount:    f.Out,
		Price:        snap.Price,
		TxID:         f.TxID,
		SeaLifeScore: snap.SeaLifeScore,
		Profit:       pl,
		AvgBuyPrice:  avgBefore,
		ExitTarget:   snap.Price * (1 + e.cfg.ProfitThreshold),
	})
	if tokens == 0 {
		e.tracker.ResetBuyHistory()
		st.ExitTarget = snap.Price * (1 + e.cfg.ProfitThreshold)
	}

	why := "exit target"
	if d.StopLoss {
		why = "stop loss"
	}
	reason := fmt.Sprintf("Sold %.2f %s for %.6f SOL due to %s, TX=%s", d.TokenAmount, e.token.Ticker, f.Out, why, f.TxID)
	log.Info().Float64("pl", pl).Msg("🖌️ " + reason)
	return reason, nil
}

func (e *Engine) fetchSignals(ctx context.Context) (signals.Snapshot, error) {
	snap, err := e.deps.Signals.Fetch(ctx, e.token.Ticker)
	if err != nil {
		return snap, fmt.Errorf("%w: %w", ErrSignalsUnavailable, err)
	}
	return snap, nil
}

func (e *Engine) solUSD(ctx context.Context) float64 {
	if e.deps.SOL == nil {
		return e.cfg.FallbackSOLPrice
	}
	p, err := e.deps.SOL.USD(ctx)
	if err != nil || p <= 0 {
		log.Warn().Err(err).Float64("fallback", e.cfg.FallbackSOLPrice).Msg("⚠️ SOL price unavailable, using fallback")
		return e.cfg.FallbackSOLPrice
	}
	return p
}

// refreshBalances reads both balances, falling back to the cached values
// on error, and caches the result.
func (e *Engine) refreshBalances(ctx context.Context) (float64, float64) {
	st := e.state
	sol, err := e.deps.Wallet.SOL(ctx)
	if err != nil {
		log.Warn().Err(err).Float64("cached", st.CachedSOLBalance).Msg("⚠️ Failed to fetch SOL balance")
		sol = st.CachedSOLBalance
	}
	tokens, err := e.deps.Wallet.Tokens(ctx)
	if err != nil {
		log.Warn().Err(err).Float64("cached", st.CachedTokenBalance).Msg("⚠️ Failed to fetch token balance")
		tokens = st.CachedTokenBalance
	}
	st.CachedSOLBalance, st.CachedTokenBalance = sol, tokens
	return sol, tokens
}

// loadCandles prefers the signal snapshot, then the candle table, then a
// flat candle at the current price.
func (e *Engine) loadCandles(ctx context.Context, snap signals.Snapshot, now time.Time) []candle.Candle {
	if len(snap.CandleTrend) > 0 {
		return snap.CandleTrend
	}
	pair := e.token.USDPair()
	if e.deps.Candles != nil {
		since := now.Add(-e.cfg.CandleWindow).Truncate(time.Minute)
		cs, err := e.deps.Candles.CandlesSince(ctx, pair, since)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("🚨 Failed to fetch candles from database")
		case len(cs) > 0:
			if len(cs) > e.cfg.CandleLimit && e.cfg.CandleLimit > 0 {
				cs = cs[:e.cfg.CandleLimit]
			}
			return cs
		}
	}
	log.Warn().Msg("⚠️ No candles available, using fallback")
	p := snap.Price
	return []candle.Candle{{Pair: pair, Timestamp: now, Open: p, High: p, Low: p, Close: p, Doji: candle.DojiNone}}
}

// unrealizedPL values the position in SOL against the current roll. Values
// larger than the whole wallet are treated as bad data.
func (e *Engine) unrealizedPL(price, solPrice, solBalance float64) float64 {
	t := e.tracker
	if t.TokenAmount <= 0 || solPrice <= 0 {
		return 0
	}
	valueSOL := t.TokenAmount * price / solPrice
	pl := valueSOL - t.CurrentRoll
	if math.Abs(pl) > solBalance+valueSOL {
		log.Warn().Float64("unrealized", pl).Msg("⚠️ Implausible unrealized profit, resetting to 0")
		return 0
	}
	return pl
}

func (e *Engine) recordTrade(rec TradeRecord) {
	e.state.RecordTrade(rec)
	if err := e.journal.Append(rec); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to journal trade")
	}
}

func (e *Engine) finish(res Result) Result {
	e.save()
	return res
}

func (e *Engine) save() {
	e.state.Capture(e.tracker)
	if err := SaveState(e.cfg.StatePath, e.state); err != nil {
		log.Error().Err(err).Msg("🚨 Failed to save state")
	}
}

func (e *Engine) initialSOL() float64 {
	if e.state.InitialSOLBalance == nil {
		return e.state.CachedSOLBalance
	}
	return *e.state.InitialSOLBalance
}

func (e *Engine) latency() time.Duration {
	lo, hi := e.cfg.LatencyMin, e.cfg.LatencyMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func (e *Engine) report(res Result, err error) {
	if err != nil {
		log.Error().Err(err).Str("action", string(res.Action)).Msg("🚨 Trade step failed")
		if res.Action == "" {
			res = Result{Time: e.now(), Trend: NoTrend, Action: ActionError, Reason: err.Error()}
		}
	}
	e.PrintSummary(res)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package trader

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"archon/internal/metrics"
)

type fill struct {
	TxID  string
	Out   float64
	Price float64
}

// execute swaps amount (SOL for a buy, tokens for a sell) and measures the
// fill from balance deltas after the confirmation delay. Each retry widens
// the slippage by 20%. Once any attempt returned a txid, balances are
// checked again before the next swap is sent. A zero fill with a nil error
// means every attempt failed.
func (e *Engine) execute(ctx context.Context, buy bool, amount, quote, solPrice float64) (fill, error) {
	side := "sell"
	if buy {
		side = "buy"
	}
	solBefore := e.state.CachedSOLBalance
	tokenBefore := e.tracker.TokenAmount
	base := e.cfg.DynamicSlippage(e.state.MarketTrends.PriceVolatility)

	var sent SwapResult
	for attempt := 0; attempt < e.cfg.SwapAttempts; attempt++ {
		if sent.TxID != "" {
			if out := e.delta(ctx, buy, solBefore, tokenBefore); out > 0 {
				log.Info().Str("txid", sent.TxID).Msg("🖋️ Earlier swap attempt landed late")
				return e.filled(side, buy, amount, out, quote, sent), nil
			}
		}

		slippage := base * (1 + 0.2*float64(attempt))
		log.Debug().Str("side", side).Int("attempt", attempt+1).Float64("slippage", slippage).Msg("🔄 Swap attempt")

		res, err := e.deps.Swapper.Swap(ctx, SwapRequest{
			Buy:      buy,
			Amount:   amount,
			Mint:     e.token.MintAddress,
			Slippage: slippage,
			Price:    quote,
			SOLPrice: solPrice,
		})
		if res.TxID != "" {
			sent = res
		}
		if err != nil {
			metrics.SwapAttempts.WithLabelValues(side, "error").Inc()
			if errors.Is(err, ErrInvalidEndpoint) || ctx.Err() != nil {
				return fill{}, err
			}
			log.Error().Err(err).Str("txid", res.TxID).Int("attempt", attempt+1).Msg("🚨 Swap attempt error")
			if res.TxID == "" {
				if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
					return fill{}, err
				}
				continue
			}
		}

		if err := e.sleep(ctx, e.cfg.ConfirmationDelay); err != nil {
			return fill{}, err
		}
		if out := e.delta(ctx, buy, solBefore, tokenBefore); out > 0 {
			return e.filled(side, buy, amount, out, quote, res), nil
		}
		metrics.SwapAttempts.WithLabelValues(side, "no_fill").Inc()
		log.Warn().Int("attempt", attempt+1).Str("txid", res.TxID).Msg("⚠️ Swap attempt produced no fill")

		if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
			return fill{}, err
		}
	}

	if sent.TxID != "" {
		if out := e.delta(ctx, buy, solBefore, tokenBefore); out > 0 {
			return e.filled(side, buy, amount, out, quote, sent), nil
		}
	}
	log.Error().Str("side", side).Float64("amount", amount).Msg("🚨 All swap attempts failed")
	return fill{}, nil
}

// delta is what the wallet gained since the swap began: tokens for a buy,
// SOL for a sell.
func (e *Engine) delta(ctx context.Context, buy bool, solBefore, tokenBefore float64) float64 {
	solAfter, tokenAfter := e.refreshBalances(ctx)
	if buy {
		return tokenAfter - tokenBefore
	}
	return solAfter - solBefore
}

func (e *Engine) filled(side string, buy bool, amount, out, quote float64, res SwapResult) fill {
	price := res.PoolPrice
	if price <= 0 {
		price = quote
	}
	now := e.now()
	if buy {
		e.tracker.RecordBuy(now, amount, out, price, res.TxID)
	} else {
		e.tracker.RecordSell(now, out, amount, price, res.TxID)
	}
	metrics.SwapAttempts.WithLabelValues(side, "filled").Inc()
	log.Info().
		Str("txid", res.TxID).
		Str("side", side).
		Float64("amount", amount).
		Float64("price", price).
		Float64("out", out).
		Msg("🖋️ Swap executed")
	e.save()
	return fill{TxID: res.TxID, Out: out, Price: price}
}

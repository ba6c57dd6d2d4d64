package trader

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionHold        Action = "HOLD"
	ActionBuy         Action = "BUY"
	ActionSell        Action = "SELL"
	ActionSnipe       Action = "SNIPE"
	ActionSnipeFailed Action = "SNIPE FAILED"
	ActionSkipSnipe   Action = "SKIP SNIPE"
	ActionDump        Action = "DUMP"
	ActionDumpFailed  Action = "DUMP FAILED"
	ActionError       Action = "ERROR"
)

// Input is everything one decision looks at.
type Input struct {
	Now             time.Time
	Price           float64
	SOLPrice        float64
	SeaLifeScore    float64
	AvgSeaLifeScore float64
	Buys            int
	Sells           int
	Trend           Trend
	ExitTarget      float64

	SOLLiquid       float64
	TokenAmount     float64
	AvgBuyPrice     float64
	LastTradeTime   time.Time
	LastBuyAttempt  time.Time
	LastSellAttempt time.Time
}

type Decision struct {
	Action Action
	// SOL to spend on a buy.
	SOLAmount float64
	// Tokens to sell.
	TokenAmount float64
	ExpectedSOL float64
	AverageDown bool
	StopLoss    bool
	Reason      string
}

// MarketSignal is true when whale activity runs 15% above its recent
// average and buys outnumber sells by at least 1.2x.
func MarketSignal(score, avgScore float64, buys, sells int) bool {
	return score > avgScore*1.15 && float64(buys) >= float64(sells)*1.2
}

// ProfitPotential is the fractional move from avgBuy to price.
func ProfitPotential(price, avgBuy float64) float64 {
	if avgBuy <= 0 {
		return 0
	}
	return (price - avgBuy) / avgBuy
}

// Decide picks the next action. It has no side effects.
func Decide(cfg Config, in Input) Decision {
	if in.Price <= 0 {
		return hold("Invalid price from API")
	}
	if need := cfg.MinSOLRequired(); in.SOLLiquid < need {
		return hold(fmt.Sprintf("Insufficient SOL: need %.6f, have %.6f", need, in.SOLLiquid))
	}

	signal := MarketSignal(in.SeaLifeScore, in.AvgSeaLifeScore, in.Buys, in.Sells)
	buyReady := in.Now.Sub(in.LastBuyAttempt) >= cfg.BuyCooldown

	if in.TokenAmount == 0 {
		if (in.Trend == Uptrend || in.Trend == Sideways) && signal && buyReady {
			return buy(cfg, in.SOLLiquid, cfg.BuyFraction, false)
		}
		wait := max(0, cfg.BuyCooldown-in.Now.Sub(in.LastBuyAttempt))
		return hold(fmt.Sprintf("Waiting for buy: Trend=%s, Signal=%t, Cooldown=%.1fs", in.Trend, signal, wait.Seconds()))
	}

	if (in.Trend == Sideways || in.Trend == Downtrend) && signal && in.Price < in.AvgBuyPrice*0.99 && buyReady {
		return buy(cfg, in.SOLLiquid, cfg.AverageDownFraction, true)
	}

	held := in.Now.Sub(in.LastTradeTime) >= cfg.MinHold
	potential := ProfitPotential(in.Price, in.AvgBuyPrice)
	atTarget := in.Trend == Uptrend && in.Price >= in.ExitTarget*0.995 && held &&
		in.Now.Sub(in.LastSellAttempt) >= cfg.SellCooldown
	stopLoss := in.AvgBuyPrice > 0 && potential <= cfg.StopLoss && in.Trend == Downtrend && held

	if atTarget || stopLoss {
		expected := in.TokenAmount*in.Price/in.SOLPrice*(1-cfg.FeePerTrade) - cfg.NetworkFee
		if in.SOLPrice <= 0 || expected <= 0 {
			return hold(fmt.Sprintf("Expected sell amount too low: %.6f SOL", expected))
		}
		why := "exit target"
		if !atTarget {
			why = "stop loss"
		}
		return Decision{
			Action:      ActionSell,
			TokenAmount: in.TokenAmount,
			ExpectedSOL: expected,
			StopLoss:    !atTarget,
			Reason:      fmt.Sprintf("Selling %.2f tokens due to %s", in.TokenAmount, why),
		}
	}

	return hold(fmt.Sprintf("Holding: Trend=%s, Price=$%.6f, Target=$%.6f, Profit=%.2f%%",
		in.Trend, in.Price, in.ExitTarget, potential*100))
}

func buy(cfg Config, liquid, fraction float64, averageDown bool) Decision {
	amount := min(liquid*fraction, liquid-cfg.MinLiquidReserve)
	if amount < cfg.MinSwapSOL {
		return hold(fmt.Sprintf("Buy amount too low: %.6f SOL", amount))
	}
	reason := fmt.Sprintf("Buying with %.6f SOL", amount)
	if averageDown {
		reason += " to average down"
	}
	return Decision{Action: ActionBuy, SOLAmount: amount, AverageDown: averageDown, Reason: reason}
}

func hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

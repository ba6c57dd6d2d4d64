package trader

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"archon/internal/candle"
	"archon/internal/signals"
)

type SignalView struct {
	Price        float64
	SeaLifeScore float64
	Buys         int
	Sells        int
	Doji         string
}

func viewOf(s signals.Snapshot) SignalView {
	v := SignalView{Price: s.Price, SeaLifeScore: s.SeaLifeScore, Buys: s.Buys, Sells: s.Sells, Doji: candle.DojiNone}
	if s.DojiSignal != nil {
		v.Doji = candle.NormalizeDoji(*s.DojiSignal)
	}
	return v
}

// Result is what one step of the loop did, for the terminal summary.
type Result struct {
	Time         time.Time
	Signals      SignalView
	Trend        Trend
	ExitTarget   float64
	Action       Action
	Reason       string
	Progress     float64
	UnrealizedPL float64
}

const summaryWidth = 80

var (
	cyanBold = color.New(color.FgCyan, color.Bold)
	yellow   = color.New(color.FgYellow)
	green    = color.New(color.FgGreen)
	red      = color.New(color.FgRed)
)

func actionColor(a Action) *color.Color {
	switch a {
	case ActionBuy:
		return color.New(color.FgBlue, color.Bold)
	case ActionSell, ActionSnipeFailed, ActionDump, ActionDumpFailed, ActionError:
		return color.New(color.FgRed, color.Bold)
	case ActionSnipe:
		return cyanBold
	}
	return color.New(color.FgYellow, color.Bold)
}

// PrintSummary writes the colored trade summary block.
func (e *Engine) PrintSummary(r Result) {
	w := e.out
	t := e.tracker
	rule := strings.Repeat("=", summaryWidth)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	cyanBold.Fprintf(w, "Trade Summary - %s\n", r.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, rule)

	yellow.Fprintf(w, "Price: $%.6f\n", r.Signals.Price)
	yellow.Fprintf(w, "Sea Life Score: %.2f\n", r.Signals.SeaLifeScore)
	yellow.Fprintf(w, "Buys: %d | Sells: %d\n", r.Signals.Buys, r.Signals.Sells)
	yellow.Fprintf(w, "Doji Signal: %s\n", r.Signals.Doji)

	green.Fprintf(w, "SOL Liquid Available: %.6f\n", t.SOLLiquid)
	green.Fprintf(w, "SOL Trimmed: %.6f\n", t.SOLTrimmed)
	yellow.Fprintf(w, "Total %s Accumulated: %.2f\n", e.token.Ticker, t.TokenAmount)

	green.Fprintf(w, "Current Roll: %.6f SOL\n", t.CurrentRoll)
	pl := green
	if e.state.LastCyclePL < 0 {
		pl = red
	}
	pl.Fprintf(w, "Last Cycle P/L: %.6f SOL\n", e.state.LastCyclePL)
	yellow.Fprintf(w, "Avg Buy Price: $%.6f | Exit Target: $%.6f | Trend: %s\n", t.AvgBuyPrice, r.ExitTarget, r.Trend)
	green.Fprintf(w, "Flips: %d | Progress to Exit: %.1f%%\n", e.state.FlipCount, r.Progress)
	if pw, ok := e.deps.Swapper.(*PaperWallet); ok {
		cyanBold.Fprintf(w, "Paper Trades: %d | Profitable: %.1f%% | Fees: %.6f SOL\n",
			pw.TradesMade, pw.Profitability(), pw.TotalFeesPaid)
	}

	actionColor(r.Action).Fprint(w, string(r.Action))
	fmt.Fprintf(w, " - %s\n", r.Reason)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

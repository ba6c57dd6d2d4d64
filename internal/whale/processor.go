package whale

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/metrics"
)

// DetectionAmountScale converts token amounts into the integer-ish units the
// whale_detector table stores.
const DetectionAmountScale = 1_000_000

// ValidatorRow is a stored trade read back for classification.
type ValidatorRow struct {
	Signature   string    `db:"transaction_hash"`
	Wallet      string    `db:"wallet_address"`
	BlockTime   time.Time `db:"block_time"`
	PreBalance  float64   `db:"pre_balance"`
	PostBalance float64   `db:"post_balance"`
	Side        Side      `db:"trade_type"`
}

func (r ValidatorRow) Amount() float64 {
	return math.Abs(r.PostBalance - r.PreBalance)
}

// Detection is one classified trade written to whale_detector.
type Detection struct {
	Signature      string
	Wallet         string
	DetectedAt     time.Time
	Amount         float64
	Token          string
	Side           Side
	Classification string
}

// Store is the persistence the processor needs.
type Store interface {
	ValidatorTradesBetween(ctx context.Context, token string, from, to time.Time) ([]ValidatorRow, error)
	UpsertDetections(ctx context.Context, detections []Detection) error
}

type ProcessorConfig struct {
	Interval   time.Duration
	Window     time.Duration
	CountsFile string
}

// CycleReport summarizes one classification pass.
type CycleReport struct {
	Totals     map[Side]int
	Counts     map[Side]map[string]int
	Detections []Detection
}

// Processor classifies recent validator trades into sea-life tiers.
type Processor struct {
	store Store
	cfg   ProcessorConfig
}

func NewProcessor(store Store, cfg ProcessorConfig) *Processor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 120 * time.Second
	}
	return &Processor{store: store, cfg: cfg}
}

// Cycle classifies trades with block time in
// [cycleStart-window, cycleStart+interval).
func (p *Processor) Cycle(ctx context.Context, token string, cycleStart time.Time) (CycleReport, error) {
	from := cycleStart.Add(-p.cfg.Window)
	to := cycleStart.Add(p.cfg.Interval)

	rows, err := p.store.ValidatorTradesBetween(ctx, token, from, to)
	if err != nil {
		return CycleReport{}, fmt.Errorf("failed to load validator trades: %w", err)
	}

	report := ClassifyRows(rows, token)
	if err := p.store.UpsertDetections(ctx, report.Detections); err != nil {
		return report, fmt.Errorf("failed to store detections: %w", err)
	}

	if p.cfg.CountsFile != "" {
		if err := writeCounts(p.cfg.CountsFile, report.Counts); err != nil {
			log.Warn().Err(err).Msg("⚠️ could not write sea life counts")
		}
	}

	if len(rows) == 0 {
		log.Debug().Dur("window", p.cfg.Window).Msg("no trades in window")
	} else {
		log.Info().
			Int("buys", report.Totals[Buy]).
			Int("sells", report.Totals[Sell]).
			Int("detections", len(report.Detections)).
			Msg("🐋 sea life cycle complete")
	}
	return report, nil
}

// ClassifyRows dedupes rows by (signature, wallet), ignores anything that is
// not a buy or sell and classifies the rest.
func ClassifyRows(rows []ValidatorRow, token string) CycleReport {
	report := CycleReport{
		Totals: map[Side]int{Buy: 0, Sell: 0},
		Counts: map[Side]map[string]int{Buy: EmptyCounts(), Sell: EmptyCounts()},
	}
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r.Side != Buy && r.Side != Sell {
			continue
		}
		key := r.Signature + "|" + r.Wallet
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		amount := r.Amount()
		class := Classify(amount)
		report.Totals[r.Side]++
		if class != NoWhale {
			report.Counts[r.Side][class]++
		}
		metrics.TradesClassified.WithLabelValues(string(r.Side), class).Inc()

		report.Detections = append(report.Detections, Detection{
			Signature:      r.Signature,
			Wallet:         r.Wallet,
			DetectedAt:     r.BlockTime,
			Amount:         amount * DetectionAmountScale,
			Token:          token,
			Side:           r.Side,
			Classification: class,
		})
	}
	return report
}

func writeCounts(path string, counts map[Side]map[string]int) error {
	data, err := json.MarshalIndent(counts, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

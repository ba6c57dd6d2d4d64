package market

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/metrics"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]Pair, error)
}

type SnapshotSink interface {
	Insert(ctx context.Context, snapshots []PairSnapshot) (int64, error)
}

// Collector polls a DexScreener search and stores every valid pair as a
// snapshot row.
type Collector struct {
	src  Searcher
	sink SnapshotSink
	cfg  CollectorConfig
}

func NewCollector(src Searcher, sink SnapshotSink, cfg CollectorConfig) *Collector {
	return &Collector{src: src, sink: sink, cfg: cfg}
}

func (c *Collector) Run(ctx context.Context) error {
	log.Info().Dur("interval", c.cfg.Interval).Str("query", c.cfg.Query).Msg("Collector started")

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := c.Cycle(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("⚠️ collector cycle failed, skipping")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs one poll and returns the number of stored snapshots.
func (c *Collector) Cycle(ctx context.Context, now time.Time) (int64, error) {
	defer metrics.ObserveCycle("collect", now)

	pairs, err := c.src.Search(ctx, c.cfg.Query)
	if err != nil {
		return 0, err
	}
	if len(pairs) == 0 {
		log.Info().Msg("ℹ️ No pairs returned from API this cycle")
		return 0, nil
	}

	snapshots := make([]PairSnapshot, 0, len(pairs))
	for _, p := range pairs {
		s, err := SnapshotFromPair(p, now)
		if err != nil {
			log.Warn().Err(err).Msg("skipping pair")
			continue
		}
		snapshots = append(snapshots, s)
	}

	n, err := c.sink.Insert(ctx, snapshots)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("rows", n).Int("pairs", len(pairs)).Dur("took", time.Since(now)).Msg("✅ Inserted snapshots")
	return n, nil
}

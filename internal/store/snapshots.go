package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"archon/internal/market"
)

var snapshotColumns = []string{
	"timestamp", "pair_address",
	"base_token_address", "base_token_symbol", "quote_token_address", "quote_token_symbol",
	"price_native", "price_usd", "liquidity_usd",
	"volume_m5", "volume_h1", "volume_h6", "volume_h24",
	"price_change_m5", "price_change_h1", "price_change_h6", "price_change_h24",
	"txns_m5_buys", "txns_m5_sells", "txns_h1_buys", "txns_h1_sells",
	"pair_created_at",
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// SnapshotWriter bulk loads DexScreener snapshots with COPY.
type SnapshotWriter struct {
	pool    copier
	close   func()
	timeout time.Duration
}

func OpenSnapshotWriter(ctx context.Context, cfg Config) (*SnapshotWriter, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return &SnapshotWriter{pool: pool, close: pool.Close, timeout: 20 * time.Second}, nil
}

func (w *SnapshotWriter) Close() {
	if w.close != nil {
		w.close()
	}
}

// Insert copies the batch and returns the number of rows written.
func (w *SnapshotWriter) Insert(ctx context.Context, snapshots []market.PairSnapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	rows := make([][]any, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []any{
			s.Timestamp, s.PairAddress,
			s.BaseTokenAddress, s.BaseTokenSymbol, s.QuoteTokenAddress, s.QuoteTokenSymbol,
			s.PriceNative, s.PriceUSD, s.LiquidityUSD,
			s.VolumeM5, s.VolumeH1, s.VolumeH6, s.VolumeH24,
			s.PriceChangeM5, s.PriceChangeH1, s.PriceChangeH6, s.PriceChangeH24,
			s.TxnsM5Buys, s.TxnsM5Sells, s.TxnsH1Buys, s.TxnsH1Sells,
			s.PairCreatedAt,
		}
	}

	n, err := w.pool.CopyFrom(ctx, pgx.Identifier{"pair_snapshots"}, snapshotColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into pair_snapshots failed: %w", err)
	}
	if int(n) != len(snapshots) {
		log.Warn().Int("expected", len(snapshots)).Int64("copied", n).Msg("⚠️ snapshot copy count mismatch")
	}
	return n, nil
}

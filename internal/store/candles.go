package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"archon/internal/candle"
)

const candleColumns = `token_pair, timestamp, open::float8 AS open, high::float8 AS high,
	low::float8 AS low, close::float8 AS close, ma_10::float8 AS ma_10, ma_50::float8 AS ma_50,
	COALESCE(doji_type, 'None') AS doji_type`

func (s *Store) InsertCandle(ctx context.Context, c candle.Candle) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doji := candle.NormalizeDoji(c.Doji)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candles (token_pair, timestamp, open, high, low, close, ma_10, ma_50, doji_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (token_pair, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			ma_10 = EXCLUDED.ma_10,
			ma_50 = EXCLUDED.ma_50,
			doji_type = EXCLUDED.doji_type`,
		c.Pair, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.MA10, c.MA50, doji)
	if err != nil {
		return fmt.Errorf("failed to insert candle %s@%s: %w", c.Pair, c.Timestamp.Format(time.RFC3339), err)
	}
	return nil
}

// RecentCloses returns up to limit closes at or before at, newest first.
func (s *Store) RecentCloses(ctx context.Context, pair string, at time.Time, limit int) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var closes []float64
	err := s.db.SelectContext(ctx, &closes, `
		SELECT close::float8
		FROM candles
		WHERE token_pair = $1 AND timestamp <= $2
		ORDER BY timestamp DESC
		LIMIT $3`, pair, at, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent closes: %w", err)
	}
	return closes, nil
}

// CandlesSince returns candles of pair from since onwards, newest first.
func (s *Store) CandlesSince(ctx context.Context, pair string, since time.Time) ([]candle.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []candle.Candle
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+candleColumns+`
		FROM candles
		WHERE token_pair = $1 AND timestamp >= $2
		ORDER BY timestamp DESC`, pair, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	return out, nil
}

// LatestCandle returns the newest candle of pair, or nil when there is none.
func (s *Store) LatestCandle(ctx context.Context, pair string) (*candle.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var c candle.Candle
	err := s.db.GetContext(ctx, &c, `
		SELECT `+candleColumns+`
		FROM candles
		WHERE token_pair = $1
		ORDER BY timestamp DESC
		LIMIT 1`, pair)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	return &c, nil
}

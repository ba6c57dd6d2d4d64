package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"archon/internal/signals"
)

// TradeAggregates groups whale detections of token since a time by minute,
// side and classification, newest minute first.
func (s *Store) TradeAggregates(ctx context.Context, token string, since time.Time) ([]signals.TradeAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []signals.TradeAggregate
	err := s.db.SelectContext(ctx, &rows, `
		SELECT DATE_TRUNC('minute', detected_time) AS minute,
			trade_type,
			classification,
			COUNT(*) AS trade_count,
			SUM(amount)::float8 AS total_amount
		FROM whale_detector
		WHERE token = $1 AND detected_time >= $2
		GROUP BY DATE_TRUNC('minute', detected_time), trade_type, classification
		ORDER BY minute DESC`, token, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate whale trades: %w", err)
	}
	return rows, nil
}

// LatestWhaleTrade returns the newest buy or sell of token in one of
// classes since a time, or nil.
func (s *Store) LatestWhaleTrade(ctx context.Context, token string, classes []string, since time.Time) (*signals.WhaleTrade, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args, err := sqlx.In(`
		SELECT whale_wallet, token, trade_type, classification, amount::float8 AS amount, detected_time
		FROM whale_detector
		WHERE token = ? AND detected_time >= ?
			AND classification IN (?)
			AND trade_type IN ('buy', 'sell')
		ORDER BY detected_time DESC
		LIMIT 1`, token, since, classes)
	if err != nil {
		return nil, fmt.Errorf("failed to build whale trade query: %w", err)
	}

	var wt signals.WhaleTrade
	err = s.db.GetContext(ctx, &wt, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest whale trade: %w", err)
	}
	return &wt, nil
}

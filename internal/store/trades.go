package store

import (
	"context"
	"fmt"
	"time"

	"archon/internal/whale"
)

// UpsertValidatorTrades stores extracted trades, keyed by signature and
// wallet. token is the ticker the rows are filed under.
func (s *Store) UpsertValidatorTrades(ctx context.Context, token string, trades []whale.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validator (transaction_hash, wallet_address, block_time, token_mint,
			pre_balance, post_balance, trade_type, transaction_emoji, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_hash, wallet_address) DO UPDATE SET
			block_time = EXCLUDED.block_time,
			token_mint = EXCLUDED.token_mint,
			pre_balance = EXCLUDED.pre_balance,
			post_balance = EXCLUDED.post_balance,
			trade_type = EXCLUDED.trade_type,
			transaction_emoji = EXCLUDED.transaction_emoji,
			failed = EXCLUDED.failed`)
	if err != nil {
		return fmt.Errorf("failed to prepare validator upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.Signature, t.Wallet, t.BlockTime, token,
			t.PreBalance, t.PostBalance, string(t.Side), t.Emoji(), t.Failed); err != nil {
			return fmt.Errorf("failed to upsert validator trade %s: %w", t.Signature, err)
		}
	}
	return tx.Commit()
}

// ValidatorTradesBetween returns token trades with from <= block_time < to.
func (s *Store) ValidatorTradesBetween(ctx context.Context, token string, from, to time.Time) ([]whale.ValidatorRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []whale.ValidatorRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT transaction_hash, wallet_address, block_time, pre_balance, post_balance, trade_type
		FROM validator
		WHERE token_mint = $1 AND block_time >= $2 AND block_time < $3
		ORDER BY block_time`, token, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query validator trades: %w", err)
	}
	return rows, nil
}

func (s *Store) UpsertDetections(ctx context.Context, detections []whale.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO whale_detector (transaction_hash, whale_wallet, detected_time, amount, token, trade_type, classification)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_hash, whale_wallet) DO UPDATE SET
			detected_time = EXCLUDED.detected_time,
			amount = EXCLUDED.amount,
			token = EXCLUDED.token,
			trade_type = EXCLUDED.trade_type,
			classification = EXCLUDED.classification`)
	if err != nil {
		return fmt.Errorf("failed to prepare detection upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		if _, err := stmt.ExecContext(ctx,
			d.Signature, d.Wallet, d.DetectedAt, d.Amount, d.Token, string(d.Side), d.Classification); err != nil {
			return fmt.Errorf("failed to upsert detection %s: %w", d.Signature, err)
		}
	}
	return tx.Commit()
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/diff0/diff0/internal/core"
)

// AddCredits grants credits to a user, creating the balance row on first use,
// and journals the purchase.
func (s *postgresStore) AddCredits(ctx context.Context, userID string, amount int, description string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO user_credits (user_id, balance, total_purchased, total_used, last_updated)
		VALUES ($1, $2, $2, 0, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance         = user_credits.balance + EXCLUDED.balance,
			total_purchased = user_credits.total_purchased + EXCLUDED.balance,
			last_updated    = EXCLUDED.last_updated
		RETURNING balance`

	var balance int
	if err := tx.QueryRowContext(ctx, upsert, userID, amount, time.Now()).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to add credits for user %s: %w", userID, err)
	}

	if err := journalTransaction(ctx, tx, userID, "purchase", amount, balance, description); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit grant: %w", err)
	}
	return balance, nil
}

// DeductCredits charges a user for a review. Returns core.ErrInsufficientCredits
// when the balance does not cover the amount; callers treat that as non-fatal.
func (s *postgresStore) DeductCredits(ctx context.Context, userID string, amount int, description string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Conditional decrement: the WHERE clause makes the check-and-charge atomic.
	const charge = `
		UPDATE user_credits
		SET balance = balance - $1, total_used = total_used + $1, last_updated = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING balance`

	var balance int
	err = tx.QueryRowContext(ctx, charge, amount, time.Now(), userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct credits for user %s: %w", userID, err)
	}

	if err := journalTransaction(ctx, tx, userID, "usage", -amount, balance, description); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit credit deduction: %w", err)
	}
	return balance, nil
}

// GetCreditBalance returns the current balance; zero for unknown users.
func (s *postgresStore) GetCreditBalance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT balance FROM user_credits WHERE user_id = $1`

	var balance int
	if err := s.db.GetContext(ctx, &balance, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get credit balance for user %s: %w", userID, err)
	}
	return balance, nil
}

func journalTransaction(ctx context.Context, tx *sqlx.Tx, userID, txType string, amount, balance int, description string) error {
	const insert = `
		INSERT INTO credit_transactions (user_id, type, amount, balance, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, insert, userID, txType, amount, balance, description, time.Now()); err != nil {
		return fmt.Errorf("failed to journal credit transaction: %w", err)
	}
	return nil
}

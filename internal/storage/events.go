package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/diff0/diff0/internal/core"
)

// LogWebhookEvent durably records an inbound webhook delivery. The insert is
// idempotent on delivery_id: replaying the same delivery returns the existing
// row's id with existed=true and writes nothing.
func (s *postgresStore) LogWebhookEvent(ctx context.Context, ev *core.WebhookEvent) (int64, bool, error) {
	const insert = `
		INSERT INTO webhook_events (source, event_type, delivery_id, installation_id, payload, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (delivery_id) DO NOTHING
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, insert,
		ev.Source, ev.EventType, ev.DeliveryID, ev.InstallationID, ev.Payload, time.Now(),
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to log webhook event: %w", err)
	}

	// Conflict path: the delivery was already recorded.
	const lookup = `SELECT id FROM webhook_events WHERE delivery_id = $1`
	if err := s.db.QueryRowContext(ctx, lookup, ev.DeliveryID).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("failed to look up existing webhook event: %w", err)
	}
	return id, true, nil
}

// MarkEventProcessed records the processing outcome for a delivery. A missing
// ledger entry is a no-op, not an error.
func (s *postgresStore) MarkEventProcessed(ctx context.Context, deliveryID string, procErr error) error {
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}

	const query = `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = $1, error = $2
		WHERE delivery_id = $3`
	_, err := s.db.ExecContext(ctx, query, time.Now(), msg, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// GetWebhookEvent retrieves a ledger entry by delivery id.
func (s *postgresStore) GetWebhookEvent(ctx context.Context, deliveryID string) (*core.WebhookEvent, error) {
	const query = `
		SELECT id, source, event_type, delivery_id, installation_id, payload,
		       processed, processed_at, error, created_at
		FROM webhook_events
		WHERE delivery_id = $1`

	var ev core.WebhookEvent
	if err := s.db.GetContext(ctx, &ev, query, deliveryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return &ev, nil
}

package core

import "time"

// WebhookEvent is one durable ledger entry per inbound webhook delivery.
// At most one row exists per DeliveryID; rows are mutated once to record
// the processing outcome and are never deleted.
type WebhookEvent struct {
	ID             int64      `db:"id"`
	Source         string     `db:"source"`
	EventType      string     `db:"event_type"`
	DeliveryID     string     `db:"delivery_id"`
	InstallationID int64      `db:"installation_id"`
	Payload        []byte     `db:"payload"`
	Processed      bool       `db:"processed"`
	ProcessedAt    *time.Time `db:"processed_at"`
	Error          string     `db:"error"`
	CreatedAt      time.Time  `db:"created_at"`
}

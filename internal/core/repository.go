package core

import "time"

// Repository is a GitHub repository registered through an App installation.
// UserID is empty until the owner completes onboarding and links the
// installation to their account; unlinked repositories never get reviews.
type Repository struct {
	ID                int64     `db:"id"`
	InstallationID    int64     `db:"installation_id"`
	GitHubID          int64     `db:"github_id"`
	Name              string    `db:"name"`
	FullName          string    `db:"full_name"`
	Owner             string    `db:"owner"`
	Private           bool      `db:"private"`
	DefaultBranch     string    `db:"default_branch"`
	Language          string    `db:"language"`
	UserID            string    `db:"user_id"`
	AutoReviewEnabled bool      `db:"auto_review_enabled"`
	ConnectedAt       time.Time `db:"connected_at"`
	LastSyncedAt      time.Time `db:"last_synced_at"`
}

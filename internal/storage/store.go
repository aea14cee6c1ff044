// Package storage implements the PostgreSQL persistence layer: the webhook
// event ledger, the repository registry, review records, and user credits.
package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/diff0/diff0/internal/core"
)

// Store defines the interface for all database operations.
type Store interface {
	// Webhook event ledger.
	LogWebhookEvent(ctx context.Context, ev *core.WebhookEvent) (id int64, existed bool, err error)
	MarkEventProcessed(ctx context.Context, deliveryID string, procErr error) error
	GetWebhookEvent(ctx context.Context, deliveryID string) (*core.WebhookEvent, error)

	// Repository registry.
	FindRepository(ctx context.Context, installationID int64, repoName string) (*core.Repository, error)
	UpsertRepository(ctx context.Context, repo *core.Repository) error
	DeleteRepositoryByGitHubID(ctx context.Context, githubID int64) error
	DeleteRepositoriesForInstallation(ctx context.Context, installationID int64) error

	// Review records.
	CreateReview(ctx context.Context, review *core.Review) (int64, error)
	FindLatestReviewForPR(ctx context.Context, repositoryID int64, prNumber int) (*core.Review, error)
	MarkReviewStarted(ctx context.Context, reviewID int64) error
	SetReviewStatus(ctx context.Context, reviewID int64, status core.ReviewStatus) error
	MarkReviewCompleted(ctx context.Context, reviewID int64, creditsUsed int, findings []core.Finding) error
	MarkReviewFailed(ctx context.Context, reviewID int64, message string) error
	ListRecentReviews(ctx context.Context, userID string, limit int) ([]core.Review, error)

	// Credits.
	AddCredits(ctx context.Context, userID string, amount int, description string) (balance int, err error)
	DeductCredits(ctx context.Context, userID string, amount int, description string) (balance int, err error)
	GetCreditBalance(ctx context.Context, userID string) (int, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

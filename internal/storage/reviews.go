package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diff0/diff0/internal/core"
)

// CreateReview inserts a new pending review attempt and returns its id.
func (s *postgresStore) CreateReview(ctx context.Context, review *core.Review) (int64, error) {
	const query = `
		INSERT INTO reviews (user_id, repository_id, installation_id, pr_number, pr_title,
		                     pr_author, pr_url, status, credits_used, files_changed,
		                     additions, deletions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, $12)
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		review.UserID, review.RepositoryID, review.InstallationID, review.PRNumber,
		review.PRTitle, review.PRAuthor, review.PRURL, core.StatusPending,
		review.FilesChanged, review.Additions, review.Deletions, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create review: %w", err)
	}
	return id, nil
}

// FindLatestReviewForPR retrieves the most recent review attempt for a pull
// request, or nil when none exists. The caller uses it for the
// no-concurrent-attempt check.
func (s *postgresStore) FindLatestReviewForPR(ctx context.Context, repositoryID int64, prNumber int) (*core.Review, error) {
	const query = `
		SELECT id, user_id, repository_id, installation_id, pr_number, pr_title,
		       pr_author, pr_url, status, credits_used, files_changed, additions,
		       deletions, error_message, created_at, started_at, completed_at
		FROM reviews
		WHERE repository_id = $1 AND pr_number = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var r core.Review
	if err := s.db.GetContext(ctx, &r, query, repositoryID, prNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find review for PR #%d: %w", prNumber, err)
	}
	return &r, nil
}

// MarkReviewStarted moves the review to analyzing and stamps started_at.
func (s *postgresStore) MarkReviewStarted(ctx context.Context, reviewID int64) error {
	const query = `UPDATE reviews SET status = $1, started_at = $2 WHERE id = $3`
	if _, err := s.db.ExecContext(ctx, query, core.StatusAnalyzing, time.Now(), reviewID); err != nil {
		return fmt.Errorf("failed to mark review %d started: %w", reviewID, err)
	}
	return nil
}

// SetReviewStatus patches only the status column. Terminal statuses have
// dedicated writers so that exactly one code path performs the terminal write.
func (s *postgresStore) SetReviewStatus(ctx context.Context, reviewID int64, status core.ReviewStatus) error {
	const query = `UPDATE reviews SET status = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, status, reviewID); err != nil {
		return fmt.Errorf("failed to set review %d status to %s: %w", reviewID, status, err)
	}
	return nil
}

// MarkReviewCompleted records the terminal success state with the findings
// snapshot and the credits actually charged.
func (s *postgresStore) MarkReviewCompleted(ctx context.Context, reviewID int64, creditsUsed int, findings []core.Finding) error {
	encoded, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("failed to encode findings: %w", err)
	}

	const query = `
		UPDATE reviews
		SET status = $1, credits_used = $2, findings = $3, completed_at = $4
		WHERE id = $5`
	if _, err := s.db.ExecContext(ctx, query, core.StatusCompleted, creditsUsed, encoded, time.Now(), reviewID); err != nil {
		return fmt.Errorf("failed to mark review %d completed: %w", reviewID, err)
	}
	return nil
}

// MarkReviewFailed records the terminal failure state with the causal message.
func (s *postgresStore) MarkReviewFailed(ctx context.Context, reviewID int64, message string) error {
	const query = `
		UPDATE reviews
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4`
	if _, err := s.db.ExecContext(ctx, query, core.StatusFailed, message, time.Now(), reviewID); err != nil {
		return fmt.Errorf("failed to mark review %d failed: %w", reviewID, err)
	}
	return nil
}

// ListRecentReviews returns the newest reviews for a user, most recent first.
func (s *postgresStore) ListRecentReviews(ctx context.Context, userID string, limit int) ([]core.Review, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, user_id, repository_id, installation_id, pr_number, pr_title,
		       pr_author, pr_url, status, credits_used, files_changed, additions,
		       deletions, error_message, created_at, started_at, completed_at
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var reviews []core.Review
	if err := s.db.SelectContext(ctx, &reviews, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list reviews for user %s: %w", userID, err)
	}
	return reviews, nil
}

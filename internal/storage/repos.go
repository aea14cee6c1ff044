package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/diff0/diff0/internal/core"
)

// FindRepository looks up a registered repository by installation and name.
// Returns nil without error when the repository is not registered.
func (s *postgresStore) FindRepository(ctx context.Context, installationID int64, repoName string) (*core.Repository, error) {
	const query = `
		SELECT id, installation_id, github_id, name, full_name, owner, private,
		       default_branch, language, user_id, auto_review_enabled,
		       connected_at, last_synced_at
		FROM repositories
		WHERE installation_id = $1 AND name = $2`

	var repo core.Repository
	if err := s.db.GetContext(ctx, &repo, query, installationID, repoName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find repository: %w", err)
	}
	return &repo, nil
}

// UpsertRepository inserts a repository or refreshes its metadata on conflict.
// The user link and auto-review flag are owned by onboarding, not by webhook
// sync, so the update path leaves them untouched.
func (s *postgresStore) UpsertRepository(ctx context.Context, repo *core.Repository) error {
	const query = `
		INSERT INTO repositories (installation_id, github_id, name, full_name, owner, private,
		                          default_branch, language, user_id, auto_review_enabled,
		                          connected_at, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (github_id) DO UPDATE SET
			installation_id = EXCLUDED.installation_id,
			name            = EXCLUDED.name,
			full_name       = EXCLUDED.full_name,
			owner           = EXCLUDED.owner,
			private         = EXCLUDED.private,
			default_branch  = EXCLUDED.default_branch,
			language        = EXCLUDED.language,
			last_synced_at  = EXCLUDED.last_synced_at`

	_, err := s.db.ExecContext(ctx, query,
		repo.InstallationID, repo.GitHubID, repo.Name, repo.FullName, repo.Owner, repo.Private,
		repo.DefaultBranch, repo.Language, repo.UserID, repo.AutoReviewEnabled, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert repository %s: %w", repo.FullName, err)
	}
	return nil
}

// DeleteRepositoryByGitHubID removes a single repository from the registry.
func (s *postgresStore) DeleteRepositoryByGitHubID(ctx context.Context, githubID int64) error {
	const query = `DELETE FROM repositories WHERE github_id = $1`
	if _, err := s.db.ExecContext(ctx, query, githubID); err != nil {
		return fmt.Errorf("failed to delete repository %d: %w", githubID, err)
	}
	return nil
}

// DeleteRepositoriesForInstallation purges every repository of an uninstalled app.
func (s *postgresStore) DeleteRepositoriesForInstallation(ctx context.Context, installationID int64) error {
	const query = `DELETE FROM repositories WHERE installation_id = $1`
	if _, err := s.db.ExecContext(ctx, query, installationID); err != nil {
		return fmt.Errorf("failed to delete repositories for installation %d: %w", installationID, err)
	}
	return nil
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/storage"
)

// InstallationSyncer keeps the repository registry in step with App
// installation events. It runs synchronously in the webhook handler since
// upserts are cheap and ordering with later PR events matters.
type InstallationSyncer struct {
	store  storage.Store
	logger *slog.Logger
}

// NewInstallationSyncer creates an InstallationSyncer.
func NewInstallationSyncer(store storage.Store, logger *slog.Logger) *InstallationSyncer {
	return &InstallationSyncer{store: store, logger: logger}
}

// HandleInstallation processes installation created/deleted events.
func (s *InstallationSyncer) HandleInstallation(ctx context.Context, event *github.InstallationEvent) error {
	installationID := event.GetInstallation().GetID()
	if installationID == 0 {
		return fmt.Errorf("installation event missing installation ID")
	}

	switch event.GetAction() {
	case "created":
		return s.registerRepositories(ctx, installationID, event.Repositories)

	case "deleted":
		if err := s.store.DeleteRepositoriesForInstallation(ctx, installationID); err != nil {
			return fmt.Errorf("failed to remove repositories for installation %d: %w", installationID, err)
		}
		s.logger.Info("installation removed", "installation_id", installationID)
		return nil

	default:
		s.logger.Debug("ignoring installation action", "action", event.GetAction())
		return nil
	}
}

// HandleInstallationRepositories processes repositories added to or removed
// from an existing installation.
func (s *InstallationSyncer) HandleInstallationRepositories(ctx context.Context, event *github.InstallationRepositoriesEvent) error {
	installationID := event.GetInstallation().GetID()
	if installationID == 0 {
		return fmt.Errorf("installation_repositories event missing installation ID")
	}

	if err := s.registerRepositories(ctx, installationID, event.RepositoriesAdded); err != nil {
		return err
	}

	for _, repo := range event.RepositoriesRemoved {
		if err := s.store.DeleteRepositoryByGitHubID(ctx, repo.GetID()); err != nil {
			return fmt.Errorf("failed to remove repository %s: %w", repo.GetFullName(), err)
		}
		s.logger.Info("repository removed", "repo", repo.GetFullName(), "installation_id", installationID)
	}
	return nil
}

func (s *InstallationSyncer) registerRepositories(ctx context.Context, installationID int64, repos []*github.Repository) error {
	now := time.Now().UTC()
	for _, repo := range repos {
		owner, name := splitFullName(repo.GetFullName())
		record := &core.Repository{
			InstallationID: installationID,
			GitHubID:       repo.GetID(),
			Name:           name,
			FullName:       repo.GetFullName(),
			Owner:          owner,
			Private:        repo.GetPrivate(),
			DefaultBranch:  repo.GetDefaultBranch(),
			Language:       repo.GetLanguage(),
			ConnectedAt:    now,
			LastSyncedAt:   now,
		}
		if record.DefaultBranch == "" {
			record.DefaultBranch = "main"
		}
		if err := s.store.UpsertRepository(ctx, record); err != nil {
			return fmt.Errorf("failed to register repository %s: %w", record.FullName, err)
		}
		s.logger.Info("repository registered", "repo", record.FullName, "installation_id", installationID)
	}
	return nil
}

func splitFullName(fullName string) (owner, name string) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return "", fullName
}

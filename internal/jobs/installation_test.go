package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/storage"
)

type fakeRegistryStore struct {
	storage.Store

	upserted             []*core.Repository
	deletedGitHubIDs     []int64
	deletedInstallations []int64
}

func (s *fakeRegistryStore) UpsertRepository(_ context.Context, repo *core.Repository) error {
	s.upserted = append(s.upserted, repo)
	return nil
}

func (s *fakeRegistryStore) DeleteRepositoryByGitHubID(_ context.Context, githubID int64) error {
	s.deletedGitHubIDs = append(s.deletedGitHubIDs, githubID)
	return nil
}

func (s *fakeRegistryStore) DeleteRepositoriesForInstallation(_ context.Context, installationID int64) error {
	s.deletedInstallations = append(s.deletedInstallations, installationID)
	return nil
}

func newSyncer(store storage.Store) *InstallationSyncer {
	return NewInstallationSyncer(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleInstallation_CreatedRegistersRepositories(t *testing.T) {
	store := &fakeRegistryStore{}
	syncer := newSyncer(store)

	event := &github.InstallationEvent{
		Action:       github.Ptr("created"),
		Installation: &github.Installation{ID: github.Ptr(int64(99))},
		Repositories: []*github.Repository{
			{ID: github.Ptr(int64(1001)), FullName: github.Ptr("acme/widget"), Private: github.Ptr(true)},
			{ID: github.Ptr(int64(1002)), FullName: github.Ptr("acme/gadget")},
		},
	}

	require.NoError(t, syncer.HandleInstallation(context.Background(), event))

	require.Len(t, store.upserted, 2)
	first := store.upserted[0]
	assert.Equal(t, int64(99), first.InstallationID)
	assert.Equal(t, int64(1001), first.GitHubID)
	assert.Equal(t, "acme", first.Owner)
	assert.Equal(t, "widget", first.Name)
	assert.True(t, first.Private)
	assert.Equal(t, "main", first.DefaultBranch, "missing default branch falls back to main")
	assert.Empty(t, first.UserID, "registration never links a user")
}

func TestHandleInstallation_DeletedRemovesAllRepositories(t *testing.T) {
	store := &fakeRegistryStore{}
	syncer := newSyncer(store)

	event := &github.InstallationEvent{
		Action:       github.Ptr("deleted"),
		Installation: &github.Installation{ID: github.Ptr(int64(99))},
	}

	require.NoError(t, syncer.HandleInstallation(context.Background(), event))

	assert.Equal(t, []int64{99}, store.deletedInstallations)
	assert.Empty(t, store.upserted)
}

func TestHandleInstallation_UnknownActionIgnored(t *testing.T) {
	store := &fakeRegistryStore{}
	syncer := newSyncer(store)

	event := &github.InstallationEvent{
		Action:       github.Ptr("suspend"),
		Installation: &github.Installation{ID: github.Ptr(int64(99))},
	}

	require.NoError(t, syncer.HandleInstallation(context.Background(), event))

	assert.Empty(t, store.upserted)
	assert.Empty(t, store.deletedInstallations)
}

func TestHandleInstallation_MissingInstallationIDRejected(t *testing.T) {
	syncer := newSyncer(&fakeRegistryStore{})

	err := syncer.HandleInstallation(context.Background(), &github.InstallationEvent{
		Action: github.Ptr("created"),
	})

	assert.Error(t, err)
}

func TestHandleInstallationRepositories_AddAndRemove(t *testing.T) {
	store := &fakeRegistryStore{}
	syncer := newSyncer(store)

	event := &github.InstallationRepositoriesEvent{
		Installation: &github.Installation{ID: github.Ptr(int64(99))},
		RepositoriesAdded: []*github.Repository{
			{ID: github.Ptr(int64(2001)), FullName: github.Ptr("acme/newrepo"), DefaultBranch: github.Ptr("develop")},
		},
		RepositoriesRemoved: []*github.Repository{
			{ID: github.Ptr(int64(1001)), FullName: github.Ptr("acme/widget")},
		},
	}

	require.NoError(t, syncer.HandleInstallationRepositories(context.Background(), event))

	require.Len(t, store.upserted, 1)
	assert.Equal(t, "develop", store.upserted[0].DefaultBranch)
	assert.Equal(t, []int64{1001}, store.deletedGitHubIDs)
}

// Package github provides functionality for interacting with the GitHub API:
// installation-scoped authentication with a bounded token cache, and a focused
// client for the pull request operations the review pipeline needs.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/sync/singleflight"

	"github.com/diff0/diff0/internal/config"
)

const (
	// tokenRefreshBuffer expires cached tokens early so a token never goes
	// stale mid-pipeline.
	tokenRefreshBuffer = time.Minute
	maxCachedTokens    = 100
)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenSource issues short-lived installation tokens, caching them per
// installation with earliest-expiry eviction. Concurrent requests for the
// same installation are collapsed into one upstream fetch.
type TokenSource struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[int64]cachedToken
	group singleflight.Group

	maxEntries int
	now        func() time.Time

	// fetch is swappable in tests.
	fetch func(ctx context.Context, installationID int64) (string, time.Time, error)
}

// NewTokenSource creates a TokenSource backed by the GitHub App credentials
// in cfg. The private key is read lazily on the first fetch.
func NewTokenSource(cfg *config.Config, logger *slog.Logger) *TokenSource {
	ts := &TokenSource{
		logger:     logger,
		cache:      make(map[int64]cachedToken),
		maxEntries: maxCachedTokens,
		now:        time.Now,
	}
	ts.fetch = func(ctx context.Context, installationID int64) (string, time.Time, error) {
		return fetchInstallationToken(ctx, cfg, installationID)
	}
	return ts
}

// Token returns a valid installation token, from cache when the cached entry
// has more than the refresh buffer left, otherwise fetched fresh.
func (ts *TokenSource) Token(ctx context.Context, installationID int64) (string, error) {
	ts.mu.Lock()
	cached, ok := ts.cache[installationID]
	ts.mu.Unlock()
	if ok && cached.expiresAt.Add(-tokenRefreshBuffer).After(ts.now()) {
		return cached.token, nil
	}

	key := strconv.FormatInt(installationID, 10)
	v, err, _ := ts.group.Do(key, func() (any, error) {
		token, expiresAt, err := ts.fetch(ctx, installationID)
		if err != nil {
			return nil, err
		}

		ts.mu.Lock()
		ts.evictLocked()
		ts.cache[installationID] = cachedToken{token: token, expiresAt: expiresAt}
		ts.mu.Unlock()

		ts.logger.Info("fetched installation token",
			"installation_id", installationID,
			"expires_at", expiresAt,
		)
		return token, nil
	})
	if err != nil {
		return "", fmt.Errorf("token acquisition failed for installation %d: %w", installationID, err)
	}
	return v.(string), nil
}

// evictLocked drops the entry with the earliest expiry when the cache is full.
// Caller must hold ts.mu.
func (ts *TokenSource) evictLocked() {
	if len(ts.cache) < ts.maxEntries {
		return
	}

	var oldestKey int64
	oldestExpiry := time.Time{}
	first := true
	for key, entry := range ts.cache {
		if first || entry.expiresAt.Before(oldestExpiry) {
			oldestExpiry = entry.expiresAt
			oldestKey = key
			first = false
		}
	}
	if !first {
		delete(ts.cache, oldestKey)
	}
}

// fetchInstallationToken exchanges App credentials for an installation token
// via the GitHub Apps API.
func fetchInstallationToken(ctx context.Context, cfg *config.Config, installationID int64) (string, time.Time, error) {
	privateKey, err := os.ReadFile(cfg.GitHub.PrivateKeyPath)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read private key from %s: %w", cfg.GitHub.PrivateKeyPath, err)
	}

	// The apps transport authenticates as the App itself, which is what the
	// installation-token endpoint requires.
	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, cfg.GitHub.AppID, privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}
	appClient := github.NewClient(&http.Client{Transport: appTransport})

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create installation token: %w", err)
	}
	if token.GetToken() == "" {
		return "", time.Time{}, fmt.Errorf("received an empty installation token")
	}
	return token.GetToken(), token.GetExpiresAt().Time, nil
}

package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenSource(maxEntries int) *TokenSource {
	ts := &TokenSource{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:      make(map[int64]cachedToken),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	return ts
}

func TestToken_CachesUntilRefreshBuffer(t *testing.T) {
	ts := newTestTokenSource(maxCachedTokens)

	var fetches int32
	ts.fetch = func(_ context.Context, installationID int64) (string, time.Time, error) {
		atomic.AddInt32(&fetches, 1)
		return fmt.Sprintf("tok-%d", installationID), time.Now().Add(time.Hour), nil
	}

	tok1, err := ts.Token(context.Background(), 42)
	require.NoError(t, err)
	tok2, err := ts.Token(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "tok-42", tok1)
	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fetches), "second call must hit the cache")
}

func TestToken_RefetchesInsideRefreshBuffer(t *testing.T) {
	ts := newTestTokenSource(maxCachedTokens)

	base := time.Now()
	ts.now = func() time.Time { return base }

	var fetches int32
	ts.fetch = func(_ context.Context, _ int64) (string, time.Time, error) {
		n := atomic.AddInt32(&fetches, 1)
		// Expires 30s out: inside the one-minute refresh buffer.
		return fmt.Sprintf("tok-%d", n), base.Add(30 * time.Second), nil
	}

	tok1, err := ts.Token(context.Background(), 42)
	require.NoError(t, err)
	tok2, err := ts.Token(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "tok-1", tok1)
	assert.Equal(t, "tok-2", tok2, "near-expiry tokens are never served from cache")
}

func TestToken_EvictsEarliestExpiryWhenFull(t *testing.T) {
	ts := newTestTokenSource(3)

	expiry := func(id int64) time.Time {
		// Installation 1 expires first and must be the eviction victim.
		return time.Now().Add(time.Hour + time.Duration(id)*time.Minute)
	}
	ts.fetch = func(_ context.Context, installationID int64) (string, time.Time, error) {
		return fmt.Sprintf("tok-%d", installationID), expiry(installationID), nil
	}

	for id := int64(1); id <= 3; id++ {
		_, err := ts.Token(context.Background(), id)
		require.NoError(t, err)
	}
	_, err := ts.Token(context.Background(), 4)
	require.NoError(t, err)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Len(t, ts.cache, 3)
	assert.NotContains(t, ts.cache, int64(1))
	assert.Contains(t, ts.cache, int64(4))
}

func TestToken_FetchErrorPropagates(t *testing.T) {
	ts := newTestTokenSource(maxCachedTokens)

	ts.fetch = func(_ context.Context, _ int64) (string, time.Time, error) {
		return "", time.Time{}, errors.New("installation suspended")
	}

	_, err := ts.Token(context.Background(), 42)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "installation 42")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	assert.Empty(t, ts.cache, "failed fetches are never cached")
}

func TestToken_ConcurrentRequestsCollapse(t *testing.T) {
	ts := newTestTokenSource(maxCachedTokens)

	var fetches int32
	release := make(chan struct{})
	ts.fetch = func(_ context.Context, _ int64) (string, time.Time, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return "tok", time.Now().Add(time.Hour), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Token(context.Background(), 42)
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}

	// Let the goroutines pile onto the singleflight before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&fetches))
}

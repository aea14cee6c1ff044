package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, handler http.Handler) Manager {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Sandbox: config.SandboxConfig{
			APIURL:          server.URL,
			APIKey:          "test-key",
			Snapshot:        "sandbox-medium",
			AutoStopMinutes: 5,
			ExecTimeout:     30 * time.Second,
		},
	}
	return NewManager(cfg, testLogger())
}

func TestAcquire_ProvisionsEphemeralSandbox(t *testing.T) {
	var gotReq createRequest
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sandboxes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "sb-42", "createdAt": "2026-01-02T03:04:05Z"}`))
	}))

	sb, err := manager.Acquire(context.Background(), CreateSpec{
		Name:   "pr-7-abcd1234",
		Labels: map[string]string{"purpose": "pr-analysis"},
	})

	require.NoError(t, err)
	assert.Equal(t, "sb-42", sb.ID)
	assert.True(t, gotReq.Ephemeral)
	assert.Equal(t, 5, gotReq.AutoStopInterval)
	assert.Equal(t, "sandbox-medium", gotReq.Snapshot)
	assert.Equal(t, "pr-analysis", gotReq.Labels["purpose"])
}

func TestAcquire_ProviderErrorWrapsProvisioningError(t *testing.T) {
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))

	_, err := manager.Acquire(context.Background(), CreateSpec{Name: "pr-1"})

	var provErr *core.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "create", provErr.Op)
	assert.Contains(t, provErr.Error(), "quota exceeded")
}

func TestAcquire_MissingIDIsAFailure(t *testing.T) {
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := manager.Acquire(context.Background(), CreateSpec{Name: "pr-1"})

	var provErr *core.ProvisioningError
	assert.ErrorAs(t, err, &provErr)
}

func TestExec_RunsCommandWithTimeoutSeconds(t *testing.T) {
	var gotReq execRequest
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sandboxes/sb-42/exec", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"exitCode": 0, "result": "ok\n"}`))
	}))

	result, err := manager.Exec(context.Background(), &Sandbox{ID: "sb-42"}, Command{
		Command: "git status",
		Cwd:     "repo",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "ok\n", result.Stdout)
	assert.Equal(t, "git status", gotReq.Command)
	assert.Equal(t, "repo", gotReq.Cwd)
	assert.Equal(t, 30, gotReq.Timeout, "manager-wide default timeout in seconds")
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"exitCode": 128, "result": "fatal: not a git repository"}`))
	}))

	result, err := manager.Exec(context.Background(), &Sandbox{ID: "sb-42"}, Command{Command: "git status"})

	require.NoError(t, err, "exit codes are data, not transport errors")
	assert.Equal(t, 128, result.ExitCode)
}

func TestRelease_DeletesSandbox(t *testing.T) {
	var deleted bool
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/sandboxes/sb-42", r.URL.Path)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	err := manager.Release(context.Background(), &Sandbox{ID: "sb-42"})

	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestRelease_NotFoundIsAlreadyReleased(t *testing.T) {
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such sandbox", http.StatusNotFound)
	}))

	err := manager.Release(context.Background(), &Sandbox{ID: "sb-gone"})

	assert.NoError(t, err)
}

func TestRelease_OtherErrorsPropagate(t *testing.T) {
	manager := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))

	err := manager.Release(context.Background(), &Sandbox{ID: "sb-42"})

	assert.Error(t, err)
}

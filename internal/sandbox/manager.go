// Package sandbox manages ephemeral, isolated execution environments
// provisioned per review run through an external compute provider's HTTP API.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
)

// Sandbox is an opaque handle to ephemeral compute. It is never persisted
// beyond one pipeline run and is exclusively owned by that run's task.
type Sandbox struct {
	ID        string
	CreatedAt time.Time
}

// CreateSpec describes the sandbox to provision. Name and Labels exist for
// provider-side observability only.
type CreateSpec struct {
	Name   string
	Labels map[string]string
}

// Command is one command execution inside a sandbox.
type Command struct {
	Command string
	Cwd     string
	Env     map[string]string
	// Timeout bounds this single execution; zero falls back to the
	// manager-wide default.
	Timeout time.Duration
}

// ExecResult carries the outcome of one in-sandbox command.
type ExecResult struct {
	ExitCode int
	Stdout   string
}

// Manager acquires and releases sandboxes and runs commands inside them.
// Every Acquire must be paired with exactly one Release on all exit paths;
// a leaked sandbox is a correctness bug, not a cosmetic one.
type Manager interface {
	Acquire(ctx context.Context, spec CreateSpec) (*Sandbox, error)
	Exec(ctx context.Context, sb *Sandbox, cmd Command) (*ExecResult, error)
	Release(ctx context.Context, sb *Sandbox) error
}

type httpManager struct {
	client      *resty.Client
	snapshot    string
	autoStopMin int
	execTimeout time.Duration
	logger      *slog.Logger
}

// NewManager creates a Manager talking to the provisioning API configured in cfg.
func NewManager(cfg *config.Config, logger *slog.Logger) Manager {
	// The client-wide timeout must outlast the longest allowed exec;
	// per-call deadlines come from the request contexts.
	client := resty.New().
		SetBaseURL(cfg.Sandbox.APIURL).
		SetAuthToken(cfg.Sandbox.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Sandbox.ExecTimeout + 30*time.Second)

	return &httpManager{
		client:      client,
		snapshot:    cfg.Sandbox.Snapshot,
		autoStopMin: cfg.Sandbox.AutoStopMinutes,
		execTimeout: cfg.Sandbox.ExecTimeout,
		logger:      logger,
	}
}

type createRequest struct {
	Name     string            `json:"name,omitempty"`
	Snapshot string            `json:"snapshot"`
	Labels   map[string]string `json:"labels,omitempty"`
	// Ephemeral sandboxes with provider-side auto-stop as a safety net;
	// explicit Release remains the primary cleanup mechanism.
	Ephemeral        bool `json:"ephemeral"`
	AutoStopInterval int  `json:"autoStopInterval"`
}

type createResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Acquire provisions a new sandbox. Failures surface as *core.ProvisioningError
// with the provider's message attached.
func (m *httpManager) Acquire(ctx context.Context, spec CreateSpec) (*Sandbox, error) {
	var created createResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(createRequest{
			Name:             spec.Name,
			Snapshot:         m.snapshot,
			Labels:           spec.Labels,
			Ephemeral:        true,
			AutoStopInterval: m.autoStopMin,
		}).
		SetResult(&created).
		Post("/sandboxes")
	if err != nil {
		return nil, &core.ProvisioningError{Op: "create", Err: err}
	}
	if resp.IsError() {
		return nil, &core.ProvisioningError{
			Op:  "create",
			Err: fmt.Errorf("provider returned %s: %s", resp.Status(), resp.String()),
		}
	}
	if created.ID == "" {
		return nil, &core.ProvisioningError{Op: "create", Err: fmt.Errorf("provider returned no sandbox id")}
	}

	sb := &Sandbox{ID: created.ID, CreatedAt: created.CreatedAt}
	if sb.CreatedAt.IsZero() {
		sb.CreatedAt = time.Now()
	}
	m.logger.Info("sandbox acquired", "sandbox_id", sb.ID, "name", spec.Name)
	return sb, nil
}

type execRequest struct {
	Command string            `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout int               `json:"timeout,omitempty"` // seconds
}

type execResponse struct {
	ExitCode int    `json:"exitCode"`
	Result   string `json:"result"`
}

// Exec runs one command inside the sandbox with a bounded timeout.
func (m *httpManager) Exec(ctx context.Context, sb *Sandbox, cmd Command) (*ExecResult, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.execTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var result execResponse
	resp, err := m.client.R().
		SetContext(execCtx).
		SetBody(execRequest{
			Command: cmd.Command,
			Cwd:     cmd.Cwd,
			Env:     cmd.Env,
			Timeout: int(timeout.Seconds()),
		}).
		SetResult(&result).
		Post(fmt.Sprintf("/sandboxes/%s/exec", sb.ID))
	if err != nil {
		return nil, fmt.Errorf("sandbox exec failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sandbox exec returned %s: %s", resp.Status(), resp.String())
	}

	return &ExecResult{ExitCode: result.ExitCode, Stdout: result.Result}, nil
}

// Release deletes the sandbox. The delete is idempotent: a sandbox the
// provider no longer knows about is treated as already released.
func (m *httpManager) Release(ctx context.Context, sb *Sandbox) error {
	resp, err := m.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/sandboxes/%s", sb.ID))
	if err != nil {
		return fmt.Errorf("sandbox release failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("sandbox release returned %s: %s", resp.Status(), resp.String())
	}

	m.logger.Info("sandbox released", "sandbox_id", sb.ID)
	return nil
}

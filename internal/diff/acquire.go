package diff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diff0/diff0/internal/core"
	gh "github.com/diff0/diff0/internal/github"
	"github.com/diff0/diff0/internal/sandbox"
)

// AcquireOptions identifies the pull request whose diff is wanted and the
// sandbox workdir holding its checked-out head.
type AcquireOptions struct {
	Owner    string
	Repo     string
	PRNumber int
	BaseRef  string
	// WorkDir is the clone path inside the sandbox.
	WorkDir string
}

// Acquirer produces unified diff text for a pull request using a cascading
// strategy: the hosting API first, then in-sandbox git against the remote
// base, then in-sandbox git against the merge-base. Shallow clones and stale
// tracking refs can make the middle strategy silently return empty; the
// merge-base pass recovers those cases.
type Acquirer struct {
	gh      gh.Client
	sandbox sandbox.Manager
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(ghClient gh.Client, mgr sandbox.Manager, logger *slog.Logger) *Acquirer {
	return &Acquirer{gh: ghClient, sandbox: mgr, logger: logger}
}

// Acquire tries each strategy until one yields non-empty diff text. When all
// three come back empty or erroring it returns core.ErrDiffUnavailable,
// which is fatal for the run: no partial review is posted.
func (a *Acquirer) Acquire(ctx context.Context, sb *sandbox.Sandbox, opts AcquireOptions) (string, error) {
	strategies := []struct {
		name string
		run  func(context.Context, *sandbox.Sandbox, AcquireOptions) (string, error)
	}{
		{"api", a.fromAPI},
		{"remote-base", a.fromRemoteBase},
		{"merge-base", a.fromMergeBase},
	}

	for _, strategy := range strategies {
		text, err := strategy.run(ctx, sb, opts)
		if err != nil {
			a.logger.Warn("diff strategy failed",
				"strategy", strategy.name,
				"pr", opts.PRNumber,
				"error", err,
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			a.logger.Warn("diff strategy returned empty output",
				"strategy", strategy.name,
				"pr", opts.PRNumber,
			)
			continue
		}
		a.logger.Info("diff acquired",
			"strategy", strategy.name,
			"pr", opts.PRNumber,
			"bytes", len(text),
		)
		return text, nil
	}

	return "", core.ErrDiffUnavailable
}

// fromAPI asks the hosting API for the PR's unified diff directly. Cheapest
// correct source when available; needs no local git state.
func (a *Acquirer) fromAPI(ctx context.Context, _ *sandbox.Sandbox, opts AcquireOptions) (string, error) {
	return a.gh.GetPullRequestDiff(ctx, opts.Owner, opts.Repo, opts.PRNumber)
}

// fromRemoteBase shallow-fetches the base ref and diffs the remote tracking
// ref against HEAD.
func (a *Acquirer) fromRemoteBase(ctx context.Context, sb *sandbox.Sandbox, opts AcquireOptions) (string, error) {
	fetch := fmt.Sprintf("git fetch --depth=50 origin %s", opts.BaseRef)
	if result, err := a.exec(ctx, sb, fetch, opts.WorkDir); err != nil {
		return "", err
	} else if result.ExitCode != 0 {
		return "", fmt.Errorf("fetch of base ref %s exited with %d", opts.BaseRef, result.ExitCode)
	}

	diffCmd := fmt.Sprintf("git diff --unified=3 origin/%s...HEAD", opts.BaseRef)
	result, err := a.exec(ctx, sb, diffCmd, opts.WorkDir)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("diff against origin/%s exited with %d", opts.BaseRef, result.ExitCode)
	}
	return result.Stdout, nil
}

// fromMergeBase fetches the base ref into a local tracking branch, resolves
// the merge-base commit, and diffs against it.
func (a *Acquirer) fromMergeBase(ctx context.Context, sb *sandbox.Sandbox, opts AcquireOptions) (string, error) {
	fetch := fmt.Sprintf("git fetch origin %s:refs/remotes/origin/%s", opts.BaseRef, opts.BaseRef)
	if result, err := a.exec(ctx, sb, fetch, opts.WorkDir); err != nil {
		return "", err
	} else if result.ExitCode != 0 {
		return "", fmt.Errorf("fetch of base ref %s exited with %d", opts.BaseRef, result.ExitCode)
	}

	mergeBase, err := a.exec(ctx, sb, fmt.Sprintf("git merge-base origin/%s HEAD", opts.BaseRef), opts.WorkDir)
	if err != nil {
		return "", err
	}
	if mergeBase.ExitCode != 0 {
		return "", fmt.Errorf("merge-base resolution exited with %d", mergeBase.ExitCode)
	}
	base := strings.TrimSpace(mergeBase.Stdout)
	if base == "" {
		return "", fmt.Errorf("merge-base resolution produced no commit")
	}

	result, err := a.exec(ctx, sb, fmt.Sprintf("git diff --unified=3 %s HEAD", base), opts.WorkDir)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("diff against merge-base exited with %d", result.ExitCode)
	}
	return result.Stdout, nil
}

func (a *Acquirer) exec(ctx context.Context, sb *sandbox.Sandbox, command, cwd string) (*sandbox.ExecResult, error) {
	return a.sandbox.Exec(ctx, sb, sandbox.Command{Command: command, Cwd: cwd})
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diff0/diff0/internal/analysis"
	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/diff"
	gh "github.com/diff0/diff0/internal/github"
	"github.com/diff0/diff0/internal/review"
	"github.com/diff0/diff0/internal/sandbox"
	"github.com/diff0/diff0/internal/storage"
)

// tokenSource issues installation-scoped API tokens.
type tokenSource interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// ReviewJob drives one review attempt end to end: applicability checks,
// review record state machine, sandbox lifecycle, diff acquisition, analysis,
// publishing, and best-effort billing.
type ReviewJob struct {
	cfg       *config.Config
	store     storage.Store
	tokens    tokenSource
	sandboxes sandbox.Manager
	analyzer  analysis.Analyzer
	logger    *slog.Logger

	// newGitHubClient is swappable in tests.
	newGitHubClient func(ctx context.Context, token string) gh.Client
}

// NewReviewJob creates a ReviewJob.
func NewReviewJob(cfg *config.Config, store storage.Store, tokens *gh.TokenSource, sandboxes sandbox.Manager, analyzer analysis.Analyzer, logger *slog.Logger) core.Job {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	j := &ReviewJob{
		cfg:       cfg,
		store:     store,
		tokens:    tokens,
		sandboxes: sandboxes,
		analyzer:  analyzer,
		logger:    logger,
	}
	j.newGitHubClient = func(ctx context.Context, token string) gh.Client {
		return gh.NewTokenClient(ctx, token, logger)
	}
	return j
}

// Run executes one review attempt. Policy skips (unregistered repository,
// disabled auto-review, conflicting review) end the run without error and
// without a review record; pipeline failures are captured onto the review
// record and the event ledger. The webhook response was sent long before
// this runs, so errors here never reach the caller of the webhook.
func (j *ReviewJob) Run(ctx context.Context, req *core.ReviewRequest) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if err := j.validate(req); err != nil {
		j.finishEvent(req.DeliveryID, err)
		return fmt.Errorf("invalid review request: %w", err)
	}

	proceed, repo, err := j.applicable(ctx, req)
	if err != nil {
		j.finishEvent(req.DeliveryID, err)
		return err
	}
	if !proceed {
		j.finishEvent(req.DeliveryID, nil)
		return nil
	}

	token, err := j.tokens.Token(ctx, req.InstallationID)
	if err != nil {
		j.finishEvent(req.DeliveryID, err)
		return fmt.Errorf("failed to obtain installation token: %w", err)
	}
	ghClient := j.newGitHubClient(ctx, token)

	repoCfg := j.loadRepoConfig(ctx, ghClient, req, repo)
	if repoCfg.Disabled {
		j.logger.Info("reviews disabled via repo config", "repo", req.RepoFullName)
		j.finishEvent(req.DeliveryID, nil)
		return nil
	}

	reviewID, err := j.store.CreateReview(ctx, &core.Review{
		UserID:         repo.UserID,
		RepositoryID:   repo.ID,
		InstallationID: req.InstallationID,
		PRNumber:       req.PRNumber,
		PRTitle:        req.PRTitle,
		PRAuthor:       req.PRAuthor,
		PRURL:          req.PRURL,
		FilesChanged:   req.FilesChanged,
		Additions:      req.Additions,
		Deletions:      req.Deletions,
	})
	if err != nil {
		j.finishEvent(req.DeliveryID, err)
		return fmt.Errorf("failed to create review record: %w", err)
	}

	j.logger.Info("starting review", "review_id", reviewID, "repo", req.RepoFullName, "pr", req.PRNumber)

	runErr := j.execute(ctx, req, repo, repoCfg, reviewID, token, ghClient)
	if runErr != nil {
		// The single terminal-failure write: execute never writes a
		// terminal status itself.
		if err := j.store.MarkReviewFailed(ctx, reviewID, runErr.Error()); err != nil {
			j.logger.Error("failed to record review failure", "review_id", reviewID, "error", err)
		}
	}

	j.finishEvent(req.DeliveryID, runErr)
	return runErr
}

// applicable applies the policy checks that decide whether this delivery
// produces a review attempt. Returns proceed=false for policy skips.
func (j *ReviewJob) applicable(ctx context.Context, req *core.ReviewRequest) (bool, *core.Repository, error) {
	repo, err := j.store.FindRepository(ctx, req.InstallationID, req.RepoName)
	if err != nil {
		return false, nil, err
	}
	if repo == nil {
		j.logger.Info("repository not registered", "repo", req.RepoFullName)
		return false, nil, nil
	}
	if repo.UserID == "" {
		j.logger.Info("repository not yet linked to a user", "repo", req.RepoFullName)
		return false, nil, nil
	}
	if !repo.AutoReviewEnabled {
		j.logger.Info("auto-review disabled", "repo", req.RepoFullName)
		return false, nil, nil
	}

	existing, err := j.store.FindLatestReviewForPR(ctx, repo.ID, req.PRNumber)
	if err != nil {
		return false, nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == core.StatusCompleted:
			j.logger.Info("review already completed", "repo", req.RepoFullName, "pr", req.PRNumber)
			return false, nil, nil
		case existing.Status.InFlight():
			j.logger.Info("review already in progress", "repo", req.RepoFullName, "pr", req.PRNumber)
			return false, nil, nil
		default:
			j.logger.Info("previous review failed, retrying", "repo", req.RepoFullName, "pr", req.PRNumber)
		}
	}

	return true, repo, nil
}

// execute runs the pipeline stages for an existing pending review. It never
// writes a terminal review status; Run owns the terminal write so exactly
// one code path performs it. The sandbox is released on every exit path.
func (j *ReviewJob) execute(ctx context.Context, req *core.ReviewRequest, repo *core.Repository, repoCfg *core.RepoConfig, reviewID int64, token string, ghClient gh.Client) error {
	if err := j.store.MarkReviewStarted(ctx, reviewID); err != nil {
		return fmt.Errorf("failed to mark review started: %w", err)
	}

	sb, err := j.sandboxes.Acquire(ctx, sandbox.CreateSpec{
		Name: fmt.Sprintf("pr-%d-%s", req.PRNumber, uuid.NewString()[:8]),
		Labels: map[string]string{
			"purpose": "pr-analysis",
			"pr":      strconv.Itoa(req.PRNumber),
			"repo":    req.RepoFullName,
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		// Release must run even when ctx is already cancelled or a later
		// stage failed; a leaked sandbox is a billing leak.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := j.sandboxes.Release(releaseCtx, sb); err != nil {
			j.logger.Error("failed to release sandbox", "sandbox_id", sb.ID, "error", err)
		}
	}()

	if err := j.cloneHead(ctx, sb, req, token); err != nil {
		return err
	}

	acquirer := diff.NewAcquirer(ghClient, j.sandboxes, j.logger)
	diffText, err := acquirer.Acquire(ctx, sb, diff.AcquireOptions{
		Owner:    req.RepoOwner,
		Repo:     req.RepoName,
		PRNumber: req.PRNumber,
		BaseRef:  req.BaseRef,
		WorkDir:  "repo",
	})
	if err != nil {
		return err
	}
	positions := diff.ParsePositions(diffText)

	result, err := j.analyzer.Analyze(ctx, diffText, j.analysisContext(req, repoCfg))
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	issues := filterExcluded(result.Issues, repoCfg.ExcludePaths)

	if err := j.store.SetReviewStatus(ctx, reviewID, core.StatusReviewing); err != nil {
		return fmt.Errorf("failed to mark review reviewing: %w", err)
	}

	headSHA := req.HeadSHA
	if headSHA == "" {
		pr, err := ghClient.GetPullRequest(ctx, req.RepoOwner, req.RepoName, req.PRNumber)
		if err != nil {
			return fmt.Errorf("failed to resolve head SHA: %w", err)
		}
		headSHA = pr.GetHead().GetSHA()
	}

	maxInline := j.cfg.Review.MaxInlineComments
	if repoCfg.MaxInlineComments > 0 {
		maxInline = repoCfg.MaxInlineComments
	}

	publisher := review.NewPublisher(ghClient, j.logger)
	inline, err := publisher.Publish(ctx, review.Target{
		Owner:    req.RepoOwner,
		Repo:     req.RepoName,
		PRNumber: req.PRNumber,
		HeadSHA:  headSHA,
	}, issues, positions, maxInline)
	if err != nil {
		return err
	}

	// Billing happens after the review is posted, deliberately: a posted
	// review with failed billing beats re-running the whole pipeline.
	creditsUsed := j.cfg.Review.CreditCost
	description := fmt.Sprintf("PR review for %s#%d", req.RepoFullName, req.PRNumber)
	if _, err := j.store.DeductCredits(ctx, repo.UserID, creditsUsed, description); err != nil {
		if !errors.Is(err, core.ErrInsufficientCredits) {
			j.logger.Error("credit deduction failed", "user", repo.UserID, "error", err)
		} else {
			j.logger.Warn("insufficient credits, review kept", "user", repo.UserID)
		}
		creditsUsed = 0
	}

	if err := j.store.MarkReviewCompleted(ctx, reviewID, creditsUsed, core.FindingsFromIssues(issues)); err != nil {
		return fmt.Errorf("failed to mark review completed: %w", err)
	}

	j.logger.Info("review completed",
		"review_id", reviewID,
		"repo", req.RepoFullName,
		"pr", req.PRNumber,
		"issues", len(issues),
		"inline_comments", inline,
		"credits_used", creditsUsed,
	)
	return nil
}

// cloneHead checks out the PR head branch inside the sandbox, authenticating
// the clone with the short-lived installation token.
func (j *ReviewJob) cloneHead(ctx context.Context, sb *sandbox.Sandbox, req *core.ReviewRequest, token string) error {
	cloneURL := strings.Replace(req.CloneURL, "https://", fmt.Sprintf("https://x-access-token:%s@", token), 1)
	cmd := fmt.Sprintf("git clone --depth=50 --branch %s %s repo", req.HeadRef, cloneURL)

	result, err := j.sandboxes.Exec(ctx, sb, sandbox.Command{Command: cmd})
	if err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("clone of %s exited with %d", req.RepoFullName, result.ExitCode)
	}
	return nil
}

// loadRepoConfig fetches .diff0.yml from the repository's default branch.
// Missing or unparsable files fall back to defaults; a broken config file
// must not block reviews.
func (j *ReviewJob) loadRepoConfig(ctx context.Context, ghClient gh.Client, req *core.ReviewRequest, repo *core.Repository) *core.RepoConfig {
	data, err := ghClient.GetFileContent(ctx, req.RepoOwner, req.RepoName, config.RepoConfigFileName, repo.DefaultBranch)
	if err != nil {
		if !errors.Is(err, gh.ErrFileNotFound) {
			j.logger.Warn("failed to fetch repo config, using defaults", "repo", req.RepoFullName, "error", err)
		}
		return core.DefaultRepoConfig()
	}

	cfg, err := config.ParseRepoConfig(data)
	if err != nil {
		j.logger.Warn("invalid repo config, using defaults", "repo", req.RepoFullName, "error", err)
		return core.DefaultRepoConfig()
	}
	return cfg
}

// analysisContext builds the free-text context passed alongside the diff.
func (j *ReviewJob) analysisContext(req *core.ReviewRequest, repoCfg *core.RepoConfig) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PR #%d in %s: %s", req.PRNumber, req.RepoFullName, req.PRTitle)
	for _, instruction := range repoCfg.CustomInstructions {
		sb.WriteString("\n")
		sb.WriteString(instruction)
	}
	return sb.String()
}

// filterExcluded drops issues under excluded path prefixes.
func filterExcluded(issues []core.Issue, excludePaths []string) []core.Issue {
	if len(excludePaths) == 0 {
		return issues
	}

	kept := make([]core.Issue, 0, len(issues))
	for _, issue := range issues {
		excluded := false
		for _, prefix := range excludePaths {
			if issue.File != "" && strings.HasPrefix(issue.File, prefix) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, issue)
		}
	}
	return kept
}

// finishEvent marks the ledger entry terminal. Runs on its own context since
// the job's context may already be done.
func (j *ReviewJob) finishEvent(deliveryID string, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := j.store.MarkEventProcessed(ctx, deliveryID, runErr); err != nil {
		j.logger.Error("failed to mark event processed", "delivery_id", deliveryID, "error", err)
	}
}

// validate ensures the request contains all required fields.
func (j *ReviewJob) validate(req *core.ReviewRequest) error {
	if req.RepoOwner == "" || req.RepoName == "" || req.RepoFullName == "" {
		return fmt.Errorf("repository identification is incomplete")
	}
	if req.CloneURL == "" {
		return fmt.Errorf("repository clone URL cannot be empty")
	}
	if req.PRNumber <= 0 {
		return fmt.Errorf("pull request number must be positive, got: %d", req.PRNumber)
	}
	if req.HeadRef == "" || req.BaseRef == "" {
		return fmt.Errorf("head and base refs are required")
	}
	if req.InstallationID <= 0 {
		return fmt.Errorf("installation ID must be positive, got: %d", req.InstallationID)
	}
	return nil
}

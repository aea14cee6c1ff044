package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"
)

// ErrFileNotFound is returned by GetFileContent when the requested path does
// not exist at the given ref.
var ErrFileNotFound = errors.New("file not found in repository")

// DraftReviewComment represents a single inline comment to be posted as part
// of a review. Position is the diff-body offset GitHub's review API expects,
// not the file line number.
type DraftReviewComment struct {
	Path     string
	Position int
	Body     string
}

// Client defines a set of operations for interacting with the GitHub API,
// focusing on pull requests, reviews, and repository contents.
type Client interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	CreateReview(ctx context.Context, owner, repo string, number int, commitSHA, body string, comments []DraftReviewComment) error
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// NewTokenClient creates a Client authenticated with an installation token.
func NewTokenClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return NewClient(github.NewClient(tc), logger)
}

// GetPullRequest retrieves a single pull request by its number.
func (g *gitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
		return nil, err
	}
	return pr, nil
}

// GetPullRequestDiff retrieves the unified diff of a pull request as a string.
func (g *gitHubClient) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{
		Type: github.Diff,
	})
	if err != nil {
		g.logger.Error("failed to get pull request diff", "owner", owner, "repo", repo, "pr", number, "error", err)
		return "", err
	}
	return diff, nil
}

// CreateComment creates a new comment on a pull request.
func (g *gitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// CreateReview submits one atomic pull request review combining a summary
// body and position-anchored inline comments, keyed to a commit SHA. The
// review event is always COMMENT: the system is advisory only and never
// approves or blocks.
func (g *gitHubClient) CreateReview(ctx context.Context, owner, repo string, number int, commitSHA, body string, comments []DraftReviewComment) error {
	var ghComments []*github.DraftReviewComment
	for _, c := range comments {
		ghComments = append(ghComments, &github.DraftReviewComment{
			Path:     github.Ptr(c.Path),
			Position: github.Ptr(c.Position),
			Body:     github.Ptr(c.Body),
		})
	}

	reviewRequest := &github.PullRequestReviewRequest{
		Body:     &body,
		Event:    github.Ptr("COMMENT"),
		Comments: ghComments,
	}
	if commitSHA != "" {
		reviewRequest.CommitID = github.Ptr(commitSHA)
	}

	_, _, err := g.client.PullRequests.CreateReview(ctx, owner, repo, number, reviewRequest)
	if err != nil {
		g.logger.Error("failed to create pull request review", "owner", owner, "repo", repo, "pr", number, "error", err)
	}
	return err
}

// GetFileContent fetches a single file from the repository at the given ref.
// Missing files map to ErrFileNotFound so callers can fall back to defaults.
func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	content, _, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrFileNotFound
		}
		g.logger.Error("failed to get file content", "owner", owner, "repo", repo, "path", path, "error", err)
		return nil, err
	}
	if content == nil {
		return nil, ErrFileNotFound
	}

	decoded, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(decoded), nil
}

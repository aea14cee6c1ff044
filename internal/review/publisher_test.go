package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/diff"
	gh "github.com/diff0/diff0/internal/github"
)

type reviewCall struct {
	commitSHA string
	body      string
	comments  []gh.DraftReviewComment
}

type fakeGitHub struct {
	gh.Client

	calls []reviewCall
	// errs is consumed one per CreateReview call; nil entries mean success.
	errs []error
}

func (f *fakeGitHub) CreateReview(_ context.Context, _, _ string, _ int, commitSHA, body string, comments []gh.DraftReviewComment) error {
	f.calls = append(f.calls, reviewCall{commitSHA: commitSHA, body: body, comments: comments})
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTarget() Target {
	return Target{Owner: "acme", Repo: "widget", PRNumber: 7, HeadSHA: "abc1234"}
}

func positionRejectionErr() *github.ErrorResponse {
	return &github.ErrorResponse{
		Response: &http.Response{
			StatusCode: http.StatusUnprocessableEntity,
			Request:    &http.Request{Method: http.MethodPost, URL: &url.URL{Path: "/reviews"}},
		},
		Message: "Validation Failed",
	}
}

func testPositions() diff.PositionMap {
	return diff.PositionMap{
		"main.go": {10: 5, 20: 12},
	}
}

func TestPublish_NoIssuesPostsCleanReview(t *testing.T) {
	ghClient := &fakeGitHub{}
	publisher := NewPublisher(ghClient, testLogger())

	inline, err := publisher.Publish(context.Background(), testTarget(), nil, testPositions(), 20)

	require.NoError(t, err)
	assert.Zero(t, inline)
	require.Len(t, ghClient.calls, 1)
	assert.Contains(t, ghClient.calls[0].body, "No issues found")
	assert.Empty(t, ghClient.calls[0].comments)
}

func TestPublish_ResolvableIssuesGoInline(t *testing.T) {
	ghClient := &fakeGitHub{}
	publisher := NewPublisher(ghClient, testLogger())

	issues := []core.Issue{
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 10, Message: "nil deref"},
		{Type: core.IssueStyle, Severity: core.SeverityLow, File: "main.go", Line: 20, Message: "naming"},
		{Type: core.IssueSecurity, Severity: core.SeverityCritical, File: "other.go", Line: 3, Message: "injection"},
	}

	inline, err := publisher.Publish(context.Background(), testTarget(), issues, testPositions(), 20)

	require.NoError(t, err)
	assert.Equal(t, 2, inline)
	require.Len(t, ghClient.calls, 1)

	call := ghClient.calls[0]
	assert.Equal(t, "abc1234", call.commitSHA)
	require.Len(t, call.comments, 2)
	assert.Equal(t, "main.go", call.comments[0].Path)
	assert.Equal(t, 5, call.comments[0].Position)
	assert.Equal(t, 12, call.comments[1].Position)

	// The unresolvable issue lands in the summary, not on the floor.
	assert.Contains(t, call.body, "Findings not on the diff")
	assert.Contains(t, call.body, "other.go")
}

func TestPublish_InlineCapOverflowDemotedToSummary(t *testing.T) {
	ghClient := &fakeGitHub{}
	publisher := NewPublisher(ghClient, testLogger())

	issues := []core.Issue{
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 10, Message: "first"},
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 20, Message: "second"},
	}

	inline, err := publisher.Publish(context.Background(), testTarget(), issues, testPositions(), 1)

	require.NoError(t, err)
	assert.Equal(t, 1, inline)
	call := ghClient.calls[0]
	require.Len(t, call.comments, 1)
	assert.Contains(t, call.body, "second")
}

func TestPublish_PositionRejectionFallsBackToSummaryOnly(t *testing.T) {
	ghClient := &fakeGitHub{errs: []error{positionRejectionErr(), nil}}
	publisher := NewPublisher(ghClient, testLogger())

	issues := []core.Issue{
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 10, Message: "nil deref"},
	}

	inline, err := publisher.Publish(context.Background(), testTarget(), issues, testPositions(), 20)

	require.NoError(t, err)
	assert.Zero(t, inline, "fallback posts no inline comments")
	require.Len(t, ghClient.calls, 2)
	assert.Empty(t, ghClient.calls[1].comments)
	assert.Contains(t, ghClient.calls[1].body, "nil deref")
}

func TestPublish_NonPositionErrorIsFatal(t *testing.T) {
	ghClient := &fakeGitHub{errs: []error{errors.New("network timeout")}}
	publisher := NewPublisher(ghClient, testLogger())

	issues := []core.Issue{
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 10, Message: "nil deref"},
	}

	_, err := publisher.Publish(context.Background(), testTarget(), issues, testPositions(), 20)

	require.Error(t, err)
	assert.Len(t, ghClient.calls, 1, "no retry on non-position failures")
}

func TestPublish_FallbackFailureIsFatal(t *testing.T) {
	ghClient := &fakeGitHub{errs: []error{positionRejectionErr(), errors.New("still broken")}}
	publisher := NewPublisher(ghClient, testLogger())

	issues := []core.Issue{
		{Type: core.IssueBug, Severity: core.SeverityHigh, File: "main.go", Line: 10, Message: "nil deref"},
	}

	_, err := publisher.Publish(context.Background(), testTarget(), issues, testPositions(), 20)

	assert.Error(t, err)
}

func TestFormatInlineComment_SuggestionFence(t *testing.T) {
	withCode := core.Issue{
		Type: core.IssueBug, Severity: core.SeverityHigh,
		Message:    "off by one",
		Suggestion: "for i := 0; i < n; i++ {",
	}
	assert.Contains(t, formatInlineComment(withCode), "```suggestion\nfor i := 0; i < n; i++ {\n```")

	withProse := core.Issue{
		Type: core.IssueStyle, Severity: core.SeverityLow,
		Message:    "long function",
		Suggestion: "Consider extracting this into a helper",
	}
	assert.NotContains(t, formatInlineComment(withProse), "```suggestion")
}

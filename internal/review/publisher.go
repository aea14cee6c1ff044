// Package review converts analyzer issues into GitHub pull request reviews:
// inline comments anchored at diff positions plus a summary body, submitted
// as one atomic review with a summary-only fallback.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/diff"
	gh "github.com/diff0/diff0/internal/github"
)

// Target identifies the pull request a review is posted to.
type Target struct {
	Owner    string
	Repo     string
	PRNumber int
	HeadSHA  string
}

// Publisher posts reviews. The system is advisory only: every review is
// submitted with the COMMENT event, never an approval or block verdict.
type Publisher struct {
	gh     gh.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(ghClient gh.Client, logger *slog.Logger) *Publisher {
	return &Publisher{gh: ghClient, logger: logger}
}

// Publish submits one review for the issue list. Issues resolvable to a diff
// position become inline comments, capped at maxInline; overflow and
// unresolvable issues go into the summary body instead of being dropped.
// Returns the number of inline comments actually posted.
//
// When the review call is rejected for a position-related reason (the server
// disagrees with the computed positions, e.g. on a stale commit SHA), the
// publisher falls back to a summary-only review rather than failing the run.
// Any other rejection propagates as fatal.
func (p *Publisher) Publish(ctx context.Context, target Target, issues []core.Issue, positions diff.PositionMap, maxInline int) (int, error) {
	if len(issues) == 0 {
		body := "✅ **AI Review Complete** - No issues found!\n\n---\n*Powered by diff0 AI*"
		if err := p.gh.CreateReview(ctx, target.Owner, target.Repo, target.PRNumber, target.HeadSHA, body, nil); err != nil {
			return 0, fmt.Errorf("failed to post no-issues review: %w", err)
		}
		return 0, nil
	}

	inline, summary := partition(issues, positions, maxInline)

	comments := make([]gh.DraftReviewComment, 0, len(inline))
	for _, entry := range inline {
		comments = append(comments, gh.DraftReviewComment{
			Path:     entry.issue.File,
			Position: entry.position,
			Body:     formatInlineComment(entry.issue),
		})
	}

	body := formatSummary(issues, summary, len(comments))

	err := p.gh.CreateReview(ctx, target.Owner, target.Repo, target.PRNumber, target.HeadSHA, body, comments)
	if err == nil {
		return len(comments), nil
	}

	if len(comments) > 0 && isPositionRejection(err) {
		p.logger.Warn("review rejected for diff positions, falling back to summary-only",
			"pr", target.PRNumber,
			"error", err,
		)
		fallback := formatSummary(issues, allIssues(issues), 0)
		if err := p.gh.CreateReview(ctx, target.Owner, target.Repo, target.PRNumber, target.HeadSHA, fallback, nil); err != nil {
			return 0, fmt.Errorf("summary-only fallback failed: %w", err)
		}
		return 0, nil
	}

	return 0, fmt.Errorf("failed to submit review: %w", err)
}

type inlineEntry struct {
	issue    core.Issue
	position int
}

// partition splits issues into position-resolvable inline entries (capped at
// maxInline) and the rest. Overflow beyond the cap is demoted to the summary
// partition, never dropped.
func partition(issues []core.Issue, positions diff.PositionMap, maxInline int) ([]inlineEntry, []core.Issue) {
	var inline []inlineEntry
	var summary []core.Issue

	for _, issue := range issues {
		if issue.File == "" || issue.Line <= 0 {
			summary = append(summary, issue)
			continue
		}
		pos, ok := positions.Resolve(issue.File, issue.Line)
		if !ok || len(inline) >= maxInline {
			summary = append(summary, issue)
			continue
		}
		inline = append(inline, inlineEntry{issue: issue, position: pos})
	}

	return inline, summary
}

func allIssues(issues []core.Issue) []core.Issue {
	out := make([]core.Issue, len(issues))
	copy(out, issues)
	return out
}

// isPositionRejection classifies a review submission error as position
// related. The API exposes no structured rejection reason, so the best
// available signal is the 422 status plus free-text matching on the message.
func isPositionRejection(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "position") || strings.Contains(msg, "422")
}

func formatInlineComment(issue core.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s %s — %s**\n\n", severityEmoji(issue.Severity), strings.ToUpper(string(issue.Type)), issue.Severity)
	sb.WriteString(issue.Message)
	sb.WriteString("\n")

	if isExecutableSuggestion(issue.Suggestion) {
		fmt.Fprintf(&sb, "\n```suggestion\n%s\n```\n", strings.TrimRight(issue.Suggestion, "\n"))
	}
	return sb.String()
}

// formatSummary builds the single review body: the overall count, how many
// comments were placed inline, and an enumeration of every issue that could
// not be anchored on the diff.
func formatSummary(issues, summaryIssues []core.Issue, inlineCount int) string {
	var sb strings.Builder
	sb.WriteString("## 🤖 AI Code Review\n\n")
	fmt.Fprintf(&sb, "Found %d issue(s)", len(issues))
	if inlineCount > 0 {
		fmt.Fprintf(&sb, "; %d posted as inline comments", inlineCount)
	}
	sb.WriteString(".\n")

	if len(summaryIssues) > 0 {
		sb.WriteString("\n### Findings not on the diff\n\n")
		for _, issue := range summaryIssues {
			fmt.Fprintf(&sb, "- %s **%s** (%s)", severityEmoji(issue.Severity), issue.Type, issue.Severity)
			if issue.File != "" {
				fmt.Fprintf(&sb, " `%s", issue.File)
				if issue.Line > 0 {
					fmt.Fprintf(&sb, ":%d", issue.Line)
				}
				sb.WriteString("`")
			}
			fmt.Fprintf(&sb, " — %s\n", issue.Message)
		}
	}

	sb.WriteString("\n---\n*Powered by diff0 AI*")
	return sb.String()
}

func severityEmoji(severity core.Severity) string {
	switch severity {
	case core.SeverityCritical:
		return "🔴"
	case core.SeverityHigh:
		return "🟠"
	case core.SeverityMedium:
		return "🟡"
	case core.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

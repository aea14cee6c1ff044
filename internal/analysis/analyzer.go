// Package analysis wraps the external AI code analysis capability behind a
// typed interface. The service itself is a black box: this package bounds the
// input, makes a single bounded-timeout call, and coerces whatever comes back
// into a well-formed issue list.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
)

// Analyzer produces a structured issue list for a code diff.
type Analyzer interface {
	Analyze(ctx context.Context, diffText, contextText string) (*core.AnalysisResult, error)
}

type httpAnalyzer struct {
	client       *resty.Client
	maxDiffBytes int
	logger       *slog.Logger
}

// NewAnalyzer creates an Analyzer talking to the analysis service in cfg.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) Analyzer {
	client := resty.New().
		SetBaseURL(cfg.Analyzer.URL).
		SetAuthToken(cfg.Analyzer.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Analyzer.Timeout)

	return &httpAnalyzer{
		client:       client,
		maxDiffBytes: cfg.Analyzer.MaxDiffBytes,
		logger:       logger,
	}
}

type analyzeRequest struct {
	Code    string `json:"code"`
	Context string `json:"context"`
}

// analyzeResponse mirrors the service's wire shape loosely; every field is
// re-validated before use.
type analyzeResponse struct {
	Issues []struct {
		Type       string `json:"type"`
		Severity   string `json:"severity"`
		File       string `json:"file"`
		Line       int    `json:"line"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion"`
	} `json:"issues"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
}

// Analyze makes exactly one call: retries belong to the orchestrator's
// failure policy, not here.
func (a *httpAnalyzer) Analyze(ctx context.Context, diffText, contextText string) (*core.AnalysisResult, error) {
	bounded := truncateAtLine(diffText, a.maxDiffBytes)
	if len(bounded) < len(diffText) {
		a.logger.Warn("diff truncated for analysis",
			"original_bytes", len(diffText),
			"bounded_bytes", len(bounded),
		)
	}

	var parsed analyzeResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(analyzeRequest{Code: bounded, Context: contextText}).
		SetResult(&parsed).
		Post("/v1/analyze")
	if err != nil {
		return nil, fmt.Errorf("analysis call failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analysis service returned %s: %s", resp.Status(), resp.String())
	}

	return normalize(&parsed, a.logger), nil
}

// normalize coerces a possibly malformed response into a safe result rather
// than propagating a schema violation: unknown enums are mapped to the
// mildest sensible value and message-less issues are dropped.
func normalize(parsed *analyzeResponse, logger *slog.Logger) *core.AnalysisResult {
	result := &core.AnalysisResult{
		Issues:     make([]core.Issue, 0, len(parsed.Issues)),
		Confidence: parsed.Confidence,
		Flags:      parsed.Flags,
	}

	for _, raw := range parsed.Issues {
		if strings.TrimSpace(raw.Message) == "" {
			continue
		}

		issue := core.Issue{
			Type:       core.IssueType(strings.ToLower(raw.Type)),
			Severity:   core.Severity(strings.ToLower(raw.Severity)),
			File:       strings.TrimPrefix(raw.File, "./"),
			Line:       raw.Line,
			Message:    raw.Message,
			Suggestion: raw.Suggestion,
		}
		if !issue.Type.Valid() {
			logger.Debug("normalizing unknown issue type", "type", raw.Type)
			issue.Type = core.IssueSuggestion
		}
		if !issue.Severity.Valid() {
			logger.Debug("normalizing unknown severity", "severity", raw.Severity)
			issue.Severity = core.SeverityMedium
		}
		if issue.Line < 0 {
			issue.Line = 0
		}

		result.Issues = append(result.Issues, issue)
	}

	return result
}

// truncateAtLine bounds s to max bytes, cutting at the last full line so the
// analyzer never sees a diff line sliced mid-way.
func truncateAtLine(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

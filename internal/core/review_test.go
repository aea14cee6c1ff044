package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusAnalyzing.IsTerminal())
	assert.False(t, StatusReviewing.IsTerminal())
}

func TestReviewStatus_InFlight(t *testing.T) {
	assert.True(t, StatusPending.InFlight())
	assert.True(t, StatusAnalyzing.InFlight())
	assert.True(t, StatusReviewing.InFlight())
	assert.False(t, StatusCompleted.InFlight())
	assert.False(t, StatusFailed.InFlight())
}

func TestFindingsFromIssues_DropsSuggestionText(t *testing.T) {
	issues := []Issue{
		{Type: IssueBug, Severity: SeverityHigh, File: "main.go", Line: 2, Message: "bad", Suggestion: "x := 1"},
	}

	findings := FindingsFromIssues(issues)

	assert.Len(t, findings, 1)
	assert.Equal(t, "bad", findings[0].Message)
	assert.Equal(t, IssueBug, findings[0].Type)
}

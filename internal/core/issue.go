package core

// IssueType classifies what kind of problem the analyzer reported.
type IssueType string

const (
	IssueBug         IssueType = "bug"
	IssueSecurity    IssueType = "security"
	IssuePerformance IssueType = "performance"
	IssueStyle       IssueType = "style"
	IssueSuggestion  IssueType = "suggestion"
)

// Valid reports whether the type is one of the known issue types.
func (t IssueType) Valid() bool {
	switch t {
	case IssueBug, IssueSecurity, IssuePerformance, IssueStyle, IssueSuggestion:
		return true
	}
	return false
}

// Severity ranks how urgent an issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Issue is a single finding produced by the analyzer. Immutable once produced.
type Issue struct {
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	File       string    `json:"file,omitempty"`
	Line       int       `json:"line,omitempty"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// AnalysisResult is the normalized output of one analyzer invocation.
type AnalysisResult struct {
	Issues     []Issue  `json:"issues"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags,omitempty"`
}

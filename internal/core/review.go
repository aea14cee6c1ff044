package core

import "time"

// ReviewStatus tracks a review through the pipeline state machine.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusAnalyzing ReviewStatus = "analyzing"
	StatusReviewing ReviewStatus = "reviewing"
	StatusCompleted ReviewStatus = "completed"
	StatusFailed    ReviewStatus = "failed"
)

// IsTerminal reports whether the status ends the pipeline.
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InFlight reports whether a review with this status is still being processed.
func (s ReviewStatus) InFlight() bool {
	return s == StatusPending || s == StatusAnalyzing || s == StatusReviewing
}

// Review is the system of record for one review attempt of a pull request.
// Status transitions are monotonic except for the explicit failed -> pending
// retry path, which is expressed as a new Review row.
type Review struct {
	ID             int64        `db:"id"`
	UserID         string       `db:"user_id"`
	RepositoryID   int64        `db:"repository_id"`
	InstallationID int64        `db:"installation_id"`
	PRNumber       int          `db:"pr_number"`
	PRTitle        string       `db:"pr_title"`
	PRAuthor       string       `db:"pr_author"`
	PRURL          string       `db:"pr_url"`
	Status         ReviewStatus `db:"status"`
	CreditsUsed    int          `db:"credits_used"`
	FilesChanged   int          `db:"files_changed"`
	Additions      int          `db:"additions"`
	Deletions      int          `db:"deletions"`
	Findings       []Finding    `db:"-"`
	ErrorMessage   string       `db:"error_message"`
	CreatedAt      time.Time    `db:"created_at"`
	StartedAt      *time.Time   `db:"started_at"`
	CompletedAt    *time.Time   `db:"completed_at"`
}

// Finding is the persisted form of an Issue. Suggestion text is deliberately
// excluded to bound storage.
type Finding struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	File     string    `json:"file,omitempty"`
	Line     int       `json:"line,omitempty"`
	Message  string    `json:"message"`
}

// FindingsFromIssues snapshots an issue list into storable findings.
func FindingsFromIssues(issues []Issue) []Finding {
	findings := make([]Finding, 0, len(issues))
	for _, is := range issues {
		findings = append(findings, Finding{
			Type:     is.Type,
			Severity: is.Severity,
			File:     is.File,
			Line:     is.Line,
			Message:  is.Message,
		})
	}
	return findings
}

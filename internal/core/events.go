// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"

	"github.com/google/go-github/v73/github"
)

// reviewableActions are the pull request actions that can trigger a review.
var reviewableActions = map[string]struct{}{
	"opened":           {},
	"reopened":         {},
	"synchronize":      {},
	"ready_for_review": {},
}

// ReviewRequest represents a simplified, internal view of a pull request
// webhook delivery that may produce a review.
type ReviewRequest struct {
	// DeliveryID ties the request back to its ledger entry.
	DeliveryID string

	// Repository details
	RepoOwner    string
	RepoName     string
	RepoFullName string
	CloneURL     string

	PRNumber int
	PRTitle  string
	PRAuthor string
	PRURL    string

	HeadRef string
	BaseRef string
	HeadSHA string

	FilesChanged int
	Additions    int
	Deletions    int

	InstallationID int64
}

// ReviewRequestFromPullRequest transforms a raw GitHub PullRequestEvent into the
// application's internal ReviewRequest. It acts as an anti-corruption layer,
// ensuring the incoming webhook payload is valid and contains all necessary data
// before it reaches a job. Actions that never produce a review (closed, labeled,
// draft PRs, ...) are rejected with a reason; callers treat that as "ignore",
// not as a failure.
func ReviewRequestFromPullRequest(deliveryID string, event *github.PullRequestEvent) (*ReviewRequest, error) {
	action := event.GetAction()
	if _, ok := reviewableActions[action]; !ok {
		return nil, fmt.Errorf("pull request action %q does not trigger a review", action)
	}

	pr := event.GetPullRequest()
	if pr == nil {
		return nil, fmt.Errorf("pull request data is missing from the event")
	}
	if pr.GetDraft() {
		return nil, fmt.Errorf("pull request %d is a draft", pr.GetNumber())
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner() == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	if pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", pr.GetNumber())
	}
	if pr.GetHead() == nil || pr.GetHead().GetRef() == "" || pr.GetBase() == nil || pr.GetBase().GetRef() == "" {
		return nil, fmt.Errorf("head or base ref is missing from the event")
	}
	if event.GetInstallation() == nil || event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	return &ReviewRequest{
		DeliveryID:     deliveryID,
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   repo.GetFullName(),
		CloneURL:       repo.GetCloneURL(),
		PRNumber:       pr.GetNumber(),
		PRTitle:        pr.GetTitle(),
		PRAuthor:       pr.GetUser().GetLogin(),
		PRURL:          pr.GetHTMLURL(),
		HeadRef:        pr.GetHead().GetRef(),
		BaseRef:        pr.GetBase().GetRef(),
		HeadSHA:        pr.GetHead().GetSHA(),
		FilesChanged:   pr.GetChangedFiles(),
		Additions:      pr.GetAdditions(),
		Deletions:      pr.GetDeletions(),
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}

// Package scm defines the SCM collaborator port: the set of hosted-
// repository operations the worker loop needs, kept separate from this
// module's core so a new platform only requires a new adapter.
// internal/scm/github and internal/scm/gitlab provide concrete adapters.
package scm

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// PullRequestMetadata is the subset of change-request metadata the prompt
// composer's PR_METADATA section needs.
type PullRequestMetadata struct {
	Title       string
	Description string
	Author      string
	BaseBranch  string
	HeadBranch  string
	HeadSHA     string
}

// Commit is a minimal commit record for the GIT_COCHANGE context strategy
// and the BUSINESS_CONTEXT ticket-reference lookup.
type Commit struct {
	SHA     string
	Message string
}

// BotReview is a previously published review authored by the bot account,
// used by the stale-review reconciliation enrichment to decide which
// prior reviews to dismiss once their findings are no longer active.
type BotReview struct {
	ID        string
	CommitSHA string
}

// Port is every operation the worker loop needs from a hosted
// source-control platform. Every method returns a pending value; errors
// surface to the caller unwrapped.
type Port interface {
	GetDiff(ctx context.Context, repositoryID, changeRequestID string) (string, error)
	GetFileContent(ctx context.Context, repositoryID, path, ref string) (string, error)
	GetPullRequestMetadata(ctx context.Context, repositoryID, changeRequestID string) (PullRequestMetadata, error)
	ListRepositoryFiles(ctx context.Context, repositoryID, ref string) ([]string, error)
	PublishReview(ctx context.Context, repositoryID, changeRequestID string, findings []domain.ReviewFinding, action ReviewAction) error
	PublishSummaryComment(ctx context.Context, repositoryID, changeRequestID, markdown string) error
	IsChangeRequestOpen(ctx context.Context, repositoryID, changeRequestID string) (bool, error)
	HasWriteAccess(ctx context.Context, repositoryID string) (bool, error)
	GetCommitsFor(ctx context.Context, repositoryID, changeRequestID string) ([]Commit, error)
	GetCommitsSince(ctx context.Context, repositoryID, ref string, since string) ([]Commit, error)
	// DismissReview withdraws a previously published bot review, used by
	// the stale-review-dismissal reconciliation against cross-run tracking
	// state.
	DismissReview(ctx context.Context, repositoryID, changeRequestID, reviewID string) error
	// ListBotReviews returns every review previously published by
	// botUsername on the change request, newest first where the
	// underlying API preserves order.
	ListBotReviews(ctx context.Context, repositoryID, changeRequestID, botUsername string) ([]BotReview, error)
}

// ReviewAction is the worker loop's chosen disposition for a published
// review, derived from the aggregated severity mix.
type ReviewAction string

const (
	ActionApprove        ReviewAction = "APPROVE"
	ActionComment        ReviewAction = "COMMENT"
	ActionRequestChanges ReviewAction = "REQUEST_CHANGES"
)

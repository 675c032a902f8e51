// Package tracking implements the cross-run finding tracking enrichment:
// a TTL'd record of which findings have already been reported for a
// change request, so the worker can tell a recurring finding from a new
// one and detect when a previously reported finding has been resolved.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// DefaultTTL matches the result store's retention window; tracking state
// for a change request is only useful while that request is active.
const DefaultTTL = 24 * time.Hour

// KeyPrefix is prepended to a Target's Key() to form the store key.
const KeyPrefix = "review:tracking:"

// Target identifies the change request whose findings are being tracked.
type Target struct {
	RepositoryID    string
	ChangeRequestID string
}

// Validate checks that the fields required to form a storage key are set.
func (t Target) Validate() error {
	if t.RepositoryID == "" {
		return errors.New("tracking: repositoryId is required")
	}
	if t.ChangeRequestID == "" {
		return errors.New("tracking: changeRequestId is required")
	}
	return nil
}

// Key generates the storage key for this target.
func (t Target) Key() string {
	return fmt.Sprintf("%s:%s", t.RepositoryID, t.ChangeRequestID)
}

// State captures the current set of tracked findings for a Target.
type State struct {
	Target          Target
	ReviewedCommits []string
	Findings        map[domain.FindingFingerprint]domain.TrackedFinding
	LastUpdated     time.Time
}

// NewState creates a new empty tracking state for a target.
func NewState(target Target) State {
	return State{
		Target:   target,
		Findings: make(map[domain.FindingFingerprint]domain.TrackedFinding),
	}
}

// HasBeenReviewed reports whether commitSHA has already been reviewed.
func (s State) HasBeenReviewed(commitSHA string) bool {
	for _, sha := range s.ReviewedCommits {
		if sha == commitSHA {
			return true
		}
	}
	return false
}

// ActiveFindings returns the findings that are still outstanding.
func (s State) ActiveFindings() []domain.TrackedFinding {
	var active []domain.TrackedFinding
	for _, f := range s.Findings {
		if f.IsActive() {
			active = append(active, f)
		}
	}
	return active
}

// LatestReviewedCommit returns the most recently reviewed commit SHA, or
// "" if none has been recorded yet.
func (s State) LatestReviewedCommit() string {
	if len(s.ReviewedCommits) == 0 {
		return ""
	}
	return s.ReviewedCommits[len(s.ReviewedCommits)-1]
}

// Reconcile folds this run's aggregated findings into the prior state:
// findings whose fingerprint was already active are bumped (SeenCount,
// LastSeen*), new fingerprints are added as active, and previously active
// fingerprints absent from this run's findings are marked resolved. The
// returned State is the one callers should Save.
func Reconcile(prior State, target Target, headSHA string, findings []domain.ReviewFinding, now time.Time) State {
	next := State{
		Target:          target,
		ReviewedCommits: append(append([]string{}, prior.ReviewedCommits...), headSHA),
		Findings:        make(map[domain.FindingFingerprint]domain.TrackedFinding, len(prior.Findings)),
		LastUpdated:     now,
	}

	current := make(map[domain.FindingFingerprint]domain.ReviewFinding, len(findings))
	for _, f := range findings {
		current[domain.ComputeFindingFingerprint(f)] = f
	}

	for fp, f := range current {
		if existing, ok := prior.Findings[fp]; ok {
			existing.Finding = f
			existing.Status = domain.TrackedFindingActive
			existing.LastSeenCommit = headSHA
			existing.LastSeenAt = now
			existing.SeenCount++
			next.Findings[fp] = existing
			continue
		}
		next.Findings[fp] = domain.TrackedFinding{
			Fingerprint:     fp,
			Finding:         f,
			Status:          domain.TrackedFindingActive,
			FirstSeenCommit: headSHA,
			FirstSeenAt:     now,
			LastSeenCommit:  headSHA,
			LastSeenAt:      now,
			SeenCount:       1,
		}
	}

	for fp, tracked := range prior.Findings {
		if _, stillPresent := current[fp]; stillPresent {
			continue
		}
		if tracked.Status == domain.TrackedFindingResolved {
			next.Findings[fp] = tracked
			continue
		}
		tracked.Status = domain.TrackedFindingResolved
		next.Findings[fp] = tracked
	}

	return next
}

// Store persists tracking State per Target.
type Store interface {
	// Load retrieves the tracking state for target. Returns an empty
	// state (not an error) if no prior state exists.
	Load(ctx context.Context, target Target) (State, error)
	// Save persists state, keyed by state.Target.
	Save(ctx context.Context, state State) error
	// Clear removes tracking state for target, typically called once
	// the change request closes or merges.
	Clear(ctx context.Context, target Target) error
}

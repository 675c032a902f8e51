// Package context implements the context retriever: a flat registry of
// pluggable strategies that each propose files relevant to a diff, run in
// parallel with isolated failure, and merged into one confidence-ranked
// bundle.
package context

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// Result is what a single strategy contributes before merge.
type Result struct {
	Matches             []domain.ContextMatch
	CandidateCount      int
	HighConfidenceCount int
	ReasonCounts        map[domain.MatchReason]int
}

// Strategy is a pluggable source of context matches. Implementations must
// not block past the timeout the orchestrator enforces around Retrieve;
// Retrieve should itself honor ctx cancellation where it does I/O.
type Strategy interface {
	Name() string
	Priority() int
	Retrieve(ctx context.Context, doc diff.GitDiffDocument) (Result, error)
}

// Bundle is the orchestrator's merged output: the ranked matches plus the
// aggregated metadata §4.2 step 5 requires.
type Bundle struct {
	Matches             []domain.ContextMatch
	StrategyNames       string
	TotalExecutionTime  int64 // milliseconds, summed across strategies
	TotalCandidates     int
	HighConfidenceCount int
	ReasonCounts        map[domain.MatchReason]int
}

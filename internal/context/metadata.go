package context

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// MetadataBasedContextStrategy wraps a set of lighter-weight strategies and
// deduplicates their combined output by file path, keeping the
// highest-confidence match per path. It exists so the orchestrator can
// treat "file reference + directory sibling" as a single registered
// strategy when that bundling is preferred over registering them
// separately.
type MetadataBasedContextStrategy struct {
	priority  int
	delegates []Strategy
}

// NewMetadataBasedContextStrategy wraps delegates under one strategy name.
func NewMetadataBasedContextStrategy(priority int, delegates ...Strategy) *MetadataBasedContextStrategy {
	return &MetadataBasedContextStrategy{priority: priority, delegates: delegates}
}

func (s *MetadataBasedContextStrategy) Name() string  { return "MetadataBasedContextStrategy" }
func (s *MetadataBasedContextStrategy) Priority() int { return s.priority }

func (s *MetadataBasedContextStrategy) Retrieve(ctx context.Context, doc diff.GitDiffDocument) (Result, error) {
	byPath := map[string]domain.ContextMatch{}
	reasonCounts := map[domain.MatchReason]int{}
	candidates := 0
	highConfidence := 0

	for _, d := range s.delegates {
		res, err := d.Retrieve(ctx, doc)
		if err != nil {
			continue
		}
		candidates += res.CandidateCount
		highConfidence += res.HighConfidenceCount
		for reason, count := range res.ReasonCounts {
			reasonCounts[reason] += count
		}
		for _, m := range res.Matches {
			existing, ok := byPath[m.FilePath]
			if !ok || m.Confidence > existing.Confidence {
				byPath[m.FilePath] = m
			}
		}
	}

	matches := make([]domain.ContextMatch, 0, len(byPath))
	for _, m := range byPath {
		matches = append(matches, m)
	}

	return Result{
		Matches:             matches,
		CandidateCount:      candidates,
		HighConfidenceCount: highConfidence,
		ReasonCounts:        reasonCounts,
	}, nil
}

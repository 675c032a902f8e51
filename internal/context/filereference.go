package context

import (
	"context"
	"regexp"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// qualifiedNamePattern matches dotted identifiers such as pkg.Type or
// pkg.sub.Func that commonly name a qualified type or import reference.
var qualifiedNamePattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+\b`)

// DiffFileReferenceExtractor scans added lines for qualified-name-looking
// tokens and proposes the files they might name. It only ever looks at
// '+' lines: a reference removed by the change is no longer relevant.
type DiffFileReferenceExtractor struct {
	priority int
}

// NewDiffFileReferenceExtractor constructs the strategy at the given merge
// priority (lower wins confidence ties).
func NewDiffFileReferenceExtractor(priority int) *DiffFileReferenceExtractor {
	return &DiffFileReferenceExtractor{priority: priority}
}

func (s *DiffFileReferenceExtractor) Name() string  { return "DiffFileReferenceExtractor" }
func (s *DiffFileReferenceExtractor) Priority() int { return s.priority }

func (s *DiffFileReferenceExtractor) Retrieve(_ context.Context, doc diff.GitDiffDocument) (Result, error) {
	seen := map[string]bool{}
	var matches []domain.ContextMatch

	for _, fm := range doc.Files {
		for _, hunk := range fm.Hunks {
			for _, line := range hunk.Lines {
				if line.Type != diff.LineAddition {
					continue
				}
				for _, ref := range qualifiedNamePattern.FindAllString(line.Content, -1) {
					if seen[ref] {
						continue
					}
					seen[ref] = true
					matches = append(matches, domain.ContextMatch{
						FilePath:   ref,
						Reason:     domain.ReasonFileReference,
						Confidence: domain.ReasonFileReference.BaseConfidence(),
						Evidence:   "referenced in added line: " + line.Content,
						Strategy:   s.Name(),
					})
				}
			}
		}
	}

	highConfidence := 0
	for _, m := range matches {
		if m.Confidence >= 0.8 {
			highConfidence++
		}
	}

	return Result{
		Matches:             matches,
		CandidateCount:      len(matches),
		HighConfidenceCount: highConfidence,
		ReasonCounts:        map[domain.MatchReason]int{domain.ReasonFileReference: len(matches)},
	}, nil
}

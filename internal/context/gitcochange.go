package context

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/gitrepo"
)

// HighCoChangeThreshold is the commit-count floor above which a co-changed
// file counts as HIGH evidence rather than MEDIUM.
const HighCoChangeThreshold = 10

// GitHistoryCoChangeStrategy surfaces files that tend to change alongside
// the files in this diff, based on repository commit history.
type GitHistoryCoChangeStrategy struct {
	repoDir    string
	priority   int
	maxCommits int
}

// NewGitHistoryCoChangeStrategy scans up to maxCommits commits per modified
// file for co-occurring paths.
func NewGitHistoryCoChangeStrategy(repoDir string, priority, maxCommits int) *GitHistoryCoChangeStrategy {
	if maxCommits <= 0 {
		maxCommits = 50
	}
	return &GitHistoryCoChangeStrategy{repoDir: repoDir, priority: priority, maxCommits: maxCommits}
}

func (s *GitHistoryCoChangeStrategy) Name() string  { return "GitHistoryCoChangeStrategy" }
func (s *GitHistoryCoChangeStrategy) Priority() int { return s.priority }

func (s *GitHistoryCoChangeStrategy) Retrieve(ctx context.Context, doc diff.GitDiffDocument) (Result, error) {
	repo, err := gitrepo.OpenLocal(s.repoDir)
	if err != nil {
		return Result{}, err
	}

	modified := map[string]bool{}
	for _, fm := range doc.Files {
		if fm.NewPath != "" && fm.NewPath != diff.DevNull {
			modified[fm.NewPath] = true
		}
	}

	seen := map[string]domain.ContextMatch{}
	reasonCounts := map[domain.MatchReason]int{}
	candidates := 0

	for path := range modified {
		select {
		case <-ctx.Done():
			return resultFrom(seen, reasonCounts, candidates), nil
		default:
		}

		counts, err := repo.CoChangedFiles(path, s.maxCommits)
		if err != nil {
			continue
		}
		for _, c := range counts {
			if modified[c.Path] {
				continue
			}
			candidates++
			reason := domain.ReasonGitCoChangeMedium
			if c.Count >= HighCoChangeThreshold {
				reason = domain.ReasonGitCoChangeHigh
			}
			reasonCounts[reason]++

			match := domain.ContextMatch{
				FilePath:   c.Path,
				Reason:     reason,
				Confidence: reason.BaseConfidence(),
				Evidence:   "co-changed with " + path,
				Strategy:   s.Name(),
			}
			existing, ok := seen[c.Path]
			if !ok || match.Confidence > existing.Confidence {
				seen[c.Path] = match
			}
		}
	}

	return resultFrom(seen, reasonCounts, candidates), nil
}

func resultFrom(seen map[string]domain.ContextMatch, reasonCounts map[domain.MatchReason]int, candidates int) Result {
	matches := make([]domain.ContextMatch, 0, len(seen))
	highConfidence := 0
	for _, m := range seen {
		matches = append(matches, m)
		if m.Confidence >= 0.8 {
			highConfidence++
		}
	}
	return Result{
		Matches:             matches,
		CandidateCount:      candidates,
		HighConfidenceCount: highConfidence,
		ReasonCounts:        reasonCounts,
	}
}

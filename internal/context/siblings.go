package context

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// DirectorySiblingAnalyzer lists the other files in each modified file's
// directory, boosting confidence for siblings that share a name prefix
// with the modified file (e.g. service.go and service_test.go).
type DirectorySiblingAnalyzer struct {
	repoDir  string
	priority int
}

// NewDirectorySiblingAnalyzer constructs the strategy rooted at repoDir.
func NewDirectorySiblingAnalyzer(repoDir string, priority int) *DirectorySiblingAnalyzer {
	return &DirectorySiblingAnalyzer{repoDir: repoDir, priority: priority}
}

func (s *DirectorySiblingAnalyzer) Name() string  { return "DirectorySiblingAnalyzer" }
func (s *DirectorySiblingAnalyzer) Priority() int { return s.priority }

func (s *DirectorySiblingAnalyzer) Retrieve(_ context.Context, doc diff.GitDiffDocument) (Result, error) {
	seen := map[string]bool{}
	var matches []domain.ContextMatch

	for _, fm := range doc.Files {
		if fm.NewPath == "" || fm.NewPath == diff.DevNull {
			continue
		}
		dir := filepath.Dir(fm.NewPath)
		base := filepath.Base(fm.NewPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))

		entries, err := os.ReadDir(filepath.Join(s.repoDir, dir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || entry.Name() == base {
				continue
			}
			sibling := filepath.Join(dir, entry.Name())
			if seen[sibling] {
				continue
			}
			seen[sibling] = true

			confidence := domain.ReasonSiblingFile.BaseConfidence()
			if strings.HasPrefix(entry.Name(), stem) {
				confidence += 0.2
				if confidence > 1 {
					confidence = 1
				}
			}
			matches = append(matches, domain.ContextMatch{
				FilePath:   sibling,
				Reason:     domain.ReasonSiblingFile,
				Confidence: confidence,
				Evidence:   "sibling of " + fm.NewPath,
				Strategy:   s.Name(),
			})
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
		ReasonCounts:        map[domain.MatchReason]int{domain.ReasonSiblingFile: len(matches)},
	}, nil
}

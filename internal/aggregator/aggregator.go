package aggregator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/llm"
)

// Aggregate runs the fixed seven-step pipeline over an optional AI result
// and an optional test-execution result, returning the published
// AggregatedReview. Either input may be nil/empty.
func Aggregate(cfg Config, ai *llm.ReviewResultSchema, tests *TestExecutionResult) domain.AggregatedReview {
	if cfg.MaxIssuesPerFile <= 0 {
		cfg = DefaultConfig()
	}

	var aiFindings []domain.ReviewFinding
	if ai != nil {
		aiFindings = filterByConfidence(ai.Issues, cfg.ConfidenceThreshold)
	}

	var testFindings []domain.ReviewFinding
	if tests != nil {
		testFindings = convertFailedTests(tests.Tests)
	}

	all := append(append([]domain.ReviewFinding{}, aiFindings...), testFindings...)
	totalBeforeDedup := len(all)

	deduped := dedup(all)
	totalAfterDedup := len(deduped)

	capped, filtered := capPerFile(deduped, cfg.MaxIssuesPerFile)

	review := domain.AggregatedReview{
		Findings:          capped,
		CountsBySeverity:  countBySeverity(capped),
		CountsBySource:    countBySource(aiFindings, testFindings, capped),
		OverallConfidence: overallConfidence(capped, cfg.ConfidenceThreshold),
		TotalBeforeDedup:  totalBeforeDedup,
		TotalAfterDedup:   totalAfterDedup,
		TotalFiltered:     filtered,
	}
	review.Summary = buildSummary(ai, tests)
	return review
}

// filterByConfidence implements step 1: keep AI issues with confidence >=
// threshold; a nil confidence passes.
func filterByConfidence(issues []llm.Issue, threshold float64) []domain.ReviewFinding {
	out := make([]domain.ReviewFinding, 0, len(issues))
	for _, issue := range issues {
		if issue.ConfidenceScore != nil && *issue.ConfidenceScore < threshold {
			continue
		}
		out = append(out, domain.ReviewFinding{
			File:                  issue.File,
			StartLine:             issue.StartLine,
			Severity:              domain.Severity(issue.Severity),
			Title:                 issue.Title,
			Suggestion:            issue.Suggestion,
			Confidence:            issue.ConfidenceScore,
			ConfidenceExplanation: issue.ConfidenceExplanation,
			SuggestedFixBase64:    issue.SuggestedFix,
			Source:                "llm",
		})
	}
	return out
}

// convertFailedTests implements step 2: FAILED/ERROR tests (never
// SKIPPED) become synthetic findings at severity "error", confidence 1.0,
// with a file path derived from the test's class name and startLine 1.
func convertFailedTests(tests []TestCase) []domain.ReviewFinding {
	confidence := 1.0
	out := make([]domain.ReviewFinding, 0, len(tests))
	for _, tc := range tests {
		if tc.Status != TestStatusFailed && tc.Status != TestStatusError {
			continue
		}
		out = append(out, domain.ReviewFinding{
			File:                  classNameToPath(tc.ClassName),
			StartLine:             1,
			Severity:              domain.SeverityError,
			Title:                 fmt.Sprintf("Test failure: %s", tc.Name),
			Suggestion:            tc.Message,
			Confidence:            &confidence,
			ConfidenceExplanation: "Derived from a failed sandboxed test run",
			Source:                "test",
		})
	}
	return out
}

// classNameToPath converts a dotted test class name (e.g. "pkg.Class")
// into the Java source path convention "pkg/Class.java".
func classNameToPath(className string) string {
	return strings.ReplaceAll(className, ".", "/") + ".java"
}

// dedup implements step 4: collapse findings sharing (file, startLine,
// severity, normalizedTitle), keeping the highest-confidence survivor. A
// nil confidence loses ties to any non-nil confidence.
func dedup(findings []domain.ReviewFinding) []domain.ReviewFinding {
	best := map[string]domain.ReviewFinding{}
	order := []string{}
	for _, f := range findings {
		key := f.DedupKey()
		existing, ok := best[key]
		if !ok {
			best[key] = f
			order = append(order, key)
			continue
		}
		if confidenceOf(f) > confidenceOf(existing) {
			best[key] = f
		}
	}
	out := make([]domain.ReviewFinding, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func confidenceOf(f domain.ReviewFinding) float64 {
	if f.Confidence == nil {
		return -1
	}
	return *f.Confidence
}

// capPerFile implements step 5-6: for each file, keep the top-N findings
// ranked by (severity rank desc i.e. numerically ascending, confidence
// desc), and report how many were dropped.
func capPerFile(findings []domain.ReviewFinding, maxPerFile int) ([]domain.ReviewFinding, int) {
	byFile := map[string][]domain.ReviewFinding{}
	var fileOrder []string
	for _, f := range findings {
		if _, ok := byFile[f.File]; !ok {
			fileOrder = append(fileOrder, f.File)
		}
		byFile[f.File] = append(byFile[f.File], f)
	}

	var kept []domain.ReviewFinding
	dropped := 0
	for _, file := range fileOrder {
		group := byFile[file]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Severity.Rank() != group[j].Severity.Rank() {
				return group[i].Severity.Rank() < group[j].Severity.Rank()
			}
			return confidenceOf(group[i]) > confidenceOf(group[j])
		})
		if len(group) > maxPerFile {
			dropped += len(group) - maxPerFile
			group = group[:maxPerFile]
		}
		kept = append(kept, group...)
	}
	return kept, dropped
}

func countBySeverity(findings []domain.ReviewFinding) map[domain.Severity]int {
	counts := map[domain.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

func countBySource(ai, tests, kept []domain.ReviewFinding) map[string]int {
	survivingAI := 0
	survivingTests := 0
	keptKeys := map[string]bool{}
	for _, f := range kept {
		keptKeys[f.DedupKey()] = true
	}
	for _, f := range ai {
		if keptKeys[f.DedupKey()] {
			survivingAI++
		}
	}
	for _, f := range tests {
		if keptKeys[f.DedupKey()] {
			survivingTests++
		}
	}
	return map[string]int{"ai": survivingAI, "tests": survivingTests}
}

// overallConfidence implements step 7: the mean confidence across
// surviving findings, 1.0 if there are none, or the configured threshold
// if every surviving finding has a nil confidence.
func overallConfidence(findings []domain.ReviewFinding, threshold float64) *float64 {
	if len(findings) == 0 {
		one := 1.0
		return &one
	}

	sum := 0.0
	count := 0
	for _, f := range findings {
		if f.Confidence != nil {
			sum += *f.Confidence
			count++
		}
	}
	if count == 0 {
		t := threshold
		return &t
	}
	mean := sum / float64(count)
	return &mean
}

// buildSummary concatenates the AI's own summary (if any) with a test
// clause: "All N tests passed" or "K of N tests failed".
func buildSummary(ai *llm.ReviewResultSchema, tests *TestExecutionResult) string {
	var parts []string
	if ai != nil && strings.TrimSpace(ai.Summary) != "" {
		parts = append(parts, ai.Summary)
	}
	if tests != nil && tests.Total() > 0 {
		failed := tests.Failed()
		if failed == 0 {
			parts = append(parts, fmt.Sprintf("All %d tests passed", tests.Total()))
		} else {
			parts = append(parts, fmt.Sprintf("%d of %d tests failed", failed, tests.Total()))
		}
	}
	if len(parts) == 0 {
		return "No modifications to review"
	}
	return strings.Join(parts, " ")
}

package aggregator_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/aggregator"
	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/llm"
)

func confidence(v float64) *float64 { return &v }

func TestAggregate_DedupKeepsHighestConfidence(t *testing.T) {
	ai := &llm.ReviewResultSchema{
		Issues: []llm.Issue{
			{File: "UserService.java", StartLine: 10, Severity: "minor", Title: "X", Suggestion: "s", ConfidenceScore: confidence(0.8)},
			{File: "UserService.java", StartLine: 10, Severity: "minor", Title: "X", Suggestion: "s", ConfidenceScore: confidence(0.9)},
		},
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), ai, nil)

	require.Equal(t, 2, review.TotalBeforeDedup)
	require.Equal(t, 1, review.TotalAfterDedup)
	require.Len(t, review.Findings, 1)
	require.Equal(t, 0.9, *review.Findings[0].Confidence)
}

func TestAggregate_PerFileCap(t *testing.T) {
	var issues []llm.Issue
	for i := 0; i < 15; i++ {
		issues = append(issues, llm.Issue{
			File: "big.go", StartLine: i + 1, Severity: "minor",
			Title: fmt.Sprintf("issue-%d", i), Suggestion: "s", ConfidenceScore: confidence(0.8),
		})
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), &llm.ReviewResultSchema{Issues: issues}, nil)

	require.Len(t, review.Findings, 10)
	require.Equal(t, 5, review.TotalFiltered)
}

func TestAggregate_ConfidenceFilterDropsLowConfidence(t *testing.T) {
	ai := &llm.ReviewResultSchema{
		Issues: []llm.Issue{
			{File: "a.go", StartLine: 1, Severity: "minor", Title: "low", Suggestion: "s", ConfidenceScore: confidence(0.3)},
			{File: "a.go", StartLine: 2, Severity: "minor", Title: "high", Suggestion: "s", ConfidenceScore: confidence(0.9)},
		},
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), ai, nil)

	require.Len(t, review.Findings, 1)
	require.Equal(t, "high", review.Findings[0].Title)
}

func TestAggregate_NilConfidencePasses(t *testing.T) {
	ai := &llm.ReviewResultSchema{
		Issues: []llm.Issue{
			{File: "a.go", StartLine: 1, Severity: "minor", Title: "t", Suggestion: "s", ConfidenceScore: nil},
		},
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), ai, nil)

	require.Len(t, review.Findings, 1)
}

func TestAggregate_FailedTestsBecomeSyntheticFindings(t *testing.T) {
	tests := &aggregator.TestExecutionResult{
		Tests: []aggregator.TestCase{
			{ClassName: "pkg.UserServiceTest", Name: "testSave", Status: aggregator.TestStatusFailed, Message: "assertion failed"},
			{ClassName: "pkg.UserServiceTest", Name: "testLoad", Status: aggregator.TestStatusPassed},
			{ClassName: "pkg.UserServiceTest", Name: "testSkip", Status: aggregator.TestStatusSkipped},
		},
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), nil, tests)

	require.Len(t, review.Findings, 1)
	f := review.Findings[0]
	require.Equal(t, "pkg/UserServiceTest.java", f.File)
	require.Equal(t, domain.SeverityError, f.Severity)
	require.Equal(t, 1, f.StartLine)
	require.Equal(t, 1.0, *f.Confidence)
	require.Contains(t, review.Summary, "1 of 3 tests failed")
}

func TestAggregate_AllTestsPassedSummary(t *testing.T) {
	tests := &aggregator.TestExecutionResult{
		Tests: []aggregator.TestCase{
			{ClassName: "pkg.A", Name: "t1", Status: aggregator.TestStatusPassed},
			{ClassName: "pkg.A", Name: "t2", Status: aggregator.TestStatusPassed},
		},
	}

	review := aggregator.Aggregate(aggregator.DefaultConfig(), nil, tests)
	require.Contains(t, review.Summary, "All 2 tests passed")
}

func TestAggregate_OverallConfidence_NoFindings(t *testing.T) {
	review := aggregator.Aggregate(aggregator.DefaultConfig(), nil, nil)
	require.Equal(t, 1.0, *review.OverallConfidence)
	require.Equal(t, "No modifications to review", review.Summary)
}

func TestAggregate_OverallConfidence_AllNilUsesThreshold(t *testing.T) {
	cfg := aggregator.DefaultConfig()
	tests := &aggregator.TestExecutionResult{}
	ai := &llm.ReviewResultSchema{
		Issues: []llm.Issue{
			{File: "a.go", StartLine: 1, Severity: "minor", Title: "t", Suggestion: "s", ConfidenceScore: nil},
		},
	}
	_ = tests

	review := aggregator.Aggregate(cfg, ai, nil)
	require.Equal(t, cfg.ConfidenceThreshold, *review.OverallConfidence)
}

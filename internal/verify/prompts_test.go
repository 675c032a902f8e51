package verify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/config"
	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/verify"
)

func TestConfidenceThreshold_UsesPerSeverityValue(t *testing.T) {
	thresholds := config.ConfidenceThresholds{Critical: 40, High: 55, Medium: 65, Low: 75, Default: 90}

	require.Equal(t, 40, verify.ConfidenceThreshold("critical", thresholds))
	require.Equal(t, 55, verify.ConfidenceThreshold("high", thresholds))
	require.Equal(t, 65, verify.ConfidenceThreshold("medium", thresholds))
	require.Equal(t, 75, verify.ConfidenceThreshold("low", thresholds))
}

func TestConfidenceThreshold_FallsBackToDefault(t *testing.T) {
	thresholds := config.ConfidenceThresholds{Default: 90}
	require.Equal(t, 90, verify.ConfidenceThreshold("critical", thresholds))
}

func TestConfidenceThreshold_FallsBackToBuiltinLadder(t *testing.T) {
	var thresholds config.ConfidenceThresholds
	require.Equal(t, 50, verify.ConfidenceThreshold("critical", thresholds))
	require.Equal(t, 60, verify.ConfidenceThreshold("high", thresholds))
	require.Equal(t, 70, verify.ConfidenceThreshold("medium", thresholds))
	require.Equal(t, 80, verify.ConfidenceThreshold("low", thresholds))
}

func TestShouldBlockOperation(t *testing.T) {
	require.True(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: true, Classification: domain.ClassBlockingBug,
	}))
	require.True(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: true, Classification: domain.ClassSecurity,
	}))
	require.False(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: true, Classification: domain.ClassStyle,
	}))
	require.False(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: false, Classification: domain.ClassBlockingBug,
	}))
}

func TestShouldBlockOperation_PerformanceNeedsHighConfidence(t *testing.T) {
	require.False(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: true, Classification: domain.ClassPerformance, Confidence: 70,
	}))
	require.True(t, verify.ShouldBlockOperation(domain.VerificationResult{
		Verified: true, Classification: domain.ClassPerformance, Confidence: 85,
	}))
}

func TestCandidatePrompt_IncludesFindingDetails(t *testing.T) {
	prompt := verify.CandidatePrompt(domain.CandidateFinding{
		Finding: domain.Finding{
			File:        "handler.go",
			LineStart:   10,
			LineEnd:     12,
			Severity:    "major",
			Description: "missing nil check",
		},
		AgreementScore: 0.5,
		Sources:        []string{"llm", "sandbox"},
	})

	require.Contains(t, prompt, "handler.go")
	require.Contains(t, prompt, "10-12")
	require.Contains(t, prompt, "missing nil check")
	require.Contains(t, prompt, "50%")
}

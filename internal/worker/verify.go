package worker

import (
	"context"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/verify"
)

// applyVerification re-examines findings through the verification
// collaborator and drops any that fail to clear their severity's
// confidence threshold. A nil VerifierFactory is a no-op so the step
// degrades cleanly when verification isn't configured.
func (w *Worker) applyVerification(ctx context.Context, repoDir string, findings []domain.ReviewFinding) []domain.ReviewFinding {
	if w.deps.VerifierFactory == nil || len(findings) == 0 {
		return findings
	}
	verifier := w.deps.VerifierFactory(verify.NewLocalRepository(repoDir))

	candidates := make([]domain.CandidateFinding, len(findings))
	for i, f := range findings {
		candidates[i] = toCandidateFinding(f)
	}

	results, err := verifier.VerifyBatch(ctx, candidates)
	if err != nil {
		w.deps.Logger.Printf("worker: verification: %v", err)
		return findings
	}

	confidence := w.cfg.Confidence
	out := make([]domain.ReviewFinding, 0, len(findings))
	for i, f := range findings {
		if i >= len(results) {
			out = append(out, f)
			continue
		}
		result := results[i]
		if !result.Verified {
			continue
		}
		threshold := verify.ConfidenceThreshold(confidenceSeverity(f.Severity), confidence)
		if result.Confidence < threshold {
			continue
		}
		out = append(out, applyVerdict(f, result))
	}
	return out
}

func toCandidateFinding(f domain.ReviewFinding) domain.CandidateFinding {
	agreement := 1.0
	if f.Confidence != nil {
		agreement = *f.Confidence
	}
	return domain.CandidateFinding{
		Finding: domain.Finding{
			ID:          string(domain.ComputeFindingFingerprint(f)),
			File:        f.File,
			LineStart:   f.StartLine,
			LineEnd:     f.EndLine,
			Severity:    string(f.Severity),
			Description: f.Description,
			Suggestion:  f.Suggestion,
		},
		AgreementScore: agreement,
		Sources:        []string{nonEmpty(f.Source, "llm")},
	}
}

// confidenceSeverity maps a domain.Severity onto the critical/high/medium/low
// vocabulary verify.ConfidenceThreshold expects; domain.Severity uses a
// different set of names (critical/major/minor/info/error) for the SCM's
// own severity ladder.
func confidenceSeverity(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "critical"
	case domain.SeverityMajor, domain.SeverityError:
		return "high"
	case domain.SeverityMinor:
		return "medium"
	case domain.SeverityInfo:
		return "low"
	default:
		return "medium"
	}
}

func applyVerdict(f domain.ReviewFinding, result domain.VerificationResult) domain.ReviewFinding {
	confidence := float64(result.Confidence) / 100
	f.Confidence = &confidence
	f.ConfidenceExplanation = result.Evidence
	return f
}

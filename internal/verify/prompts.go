package verify

import (
	"fmt"
	"strings"

	"github.com/reviewpipe/reviewpipe/internal/config"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// VerificationPrompt generates the system prompt for the agent loop.
func VerificationPrompt(tools []Tool) string {
	var sb strings.Builder

	sb.WriteString(`You are a code verification agent. Your task is to verify whether a reported code issue actually exists in the codebase.

## Your Goal
Determine if the candidate finding is:
1. A real issue that exists in the code (verified = true)
2. A false positive or incorrect claim (verified = false)

## Classification Criteria
If the finding is verified, classify it as:

- **blocking_bug**: Code that will crash, fail, or produce incorrect results at runtime
- **security**: Security vulnerabilities (injection, auth bypass, crypto weaknesses, path traversal)
- **performance**: Resource exhaustion or performance issues
- **style**: Style preferences or opinions (these are never blocking)

## Confidence Scoring
- **90-100**: Issue definitively confirmed with concrete evidence
- **70-89**: Issue very likely based on strong evidence
- **50-69**: Issue plausible but not certain
- **Below 50**: Insufficient evidence or likely false positive

## Available Tools
`)

	for _, tool := range tools {
		fmt.Fprintf(&sb, "- **%s**: %s\n", tool.Name(), tool.Description())
	}

	sb.WriteString(`
## Response Format
After investigating, respond with a JSON object:

` + "```json" + `
{
  "verified": true,
  "classification": "blocking_bug",
  "confidence": 85,
  "evidence": "The null check at line 42 of handler.go is missing. The function dereferences req.User without checking if it's nil, which will panic when called with an unauthenticated request.",
  "blocks_operation": true
}
` + "```" + `

## Tool Usage
To use a tool, respond with:

` + "```" + `
TOOL: tool_name
INPUT: your input here
` + "```" + `

After receiving the tool result, continue your investigation or provide your final verdict.

## Important Notes
- Always read the relevant file(s) before making a determination
- Do NOT assume the report is correct - verify it yourself
- Style issues should always be marked as NOT blocking
- If you cannot find sufficient evidence, return low confidence
- Be specific in your evidence - cite exact lines and code

## Common False Positive Patterns - DO NOT flag these as issues:

**Short-circuit null guards**: a null/nil check combined with a dereference
using && (AND) is SAFE; the operator short-circuits so the dereference
never runs when the guard fails (` + "`x != nil && x.field`" + `,
` + "`obj !== null && obj.prop`" + `, ` + "`x is not None and x.attr`" + `).

**Short-circuit OR guards**: ` + "`x == nil || ...`" + ` patterns short-circuit
the other direction and are equally safe.

**Optional chaining**: ` + "`?.`" + ` (JS/TS), ` + "`&.`" + ` (Ruby) are designed
for safe null access.

**Guard clauses with early return**: code after an early return on a nil
check is safe to dereference.

If the reported issue matches one of these patterns, mark verified:false
with high confidence and explain which safe pattern applies.
`)

	return sb.String()
}

// CandidatePrompt generates the prompt for a specific candidate finding.
func CandidatePrompt(candidate domain.CandidateFinding) string {
	var sb strings.Builder

	sb.WriteString("## Candidate Finding to Verify\n\n")
	fmt.Fprintf(&sb, "**File**: %s\n", candidate.Finding.File)

	if candidate.Finding.LineStart > 0 {
		if candidate.Finding.LineEnd > 0 && candidate.Finding.LineEnd != candidate.Finding.LineStart {
			fmt.Fprintf(&sb, "**Lines**: %d-%d\n", candidate.Finding.LineStart, candidate.Finding.LineEnd)
		} else {
			fmt.Fprintf(&sb, "**Line**: %d\n", candidate.Finding.LineStart)
		}
	}

	fmt.Fprintf(&sb, "**Severity**: %s\n", candidate.Finding.Severity)
	fmt.Fprintf(&sb, "**Description**: %s\n", candidate.Finding.Description)

	if candidate.Finding.Category != "" {
		fmt.Fprintf(&sb, "**Category**: %s\n", candidate.Finding.Category)
	}
	if candidate.Finding.Suggestion != "" {
		fmt.Fprintf(&sb, "**Suggestion**: %s\n", candidate.Finding.Suggestion)
	}

	fmt.Fprintf(&sb, "\n**Agreement Score**: %.0f%% of reviewers reported this issue\n", candidate.AgreementScore*100)
	fmt.Fprintf(&sb, "**Sources**: %s\n", strings.Join(candidate.Sources, ", "))

	sb.WriteString("\nPlease verify this finding by reading the relevant code and determining if the issue actually exists.\n")

	return sb.String()
}

// ToolResultPrompt wraps a tool result for the next turn of the agent loop.
func ToolResultPrompt(toolName, input, output string) string {
	return fmt.Sprintf(`## Tool Result

**Tool**: %s
**Input**: %s

**Output**:
%s

Continue your investigation or provide your final verdict.
`, toolName, input, output)
}

// ConfidenceThreshold returns the minimum confidence required to report a
// finding of the given severity.
func ConfidenceThreshold(severity string, thresholds config.ConfidenceThresholds) int {
	switch strings.ToLower(severity) {
	case "critical":
		if thresholds.Critical > 0 {
			return thresholds.Critical
		}
	case "high":
		if thresholds.High > 0 {
			return thresholds.High
		}
	case "medium":
		if thresholds.Medium > 0 {
			return thresholds.Medium
		}
	case "low":
		if thresholds.Low > 0 {
			return thresholds.Low
		}
	}

	if thresholds.Default > 0 {
		return thresholds.Default
	}

	switch strings.ToLower(severity) {
	case "critical":
		return 50
	case "high":
		return 60
	case "medium":
		return 70
	case "low":
		return 80
	default:
		return 70
	}
}

// ShouldBlockOperation determines whether a verified finding should block
// publication of the review.
func ShouldBlockOperation(result domain.VerificationResult) bool {
	if !result.Verified {
		return false
	}
	if result.Classification == domain.ClassStyle {
		return false
	}
	if result.Classification == domain.ClassBlockingBug || result.Classification == domain.ClassSecurity {
		return true
	}
	if result.Classification == domain.ClassPerformance {
		return result.Confidence >= 80
	}
	return false
}

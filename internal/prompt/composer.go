// Package prompt assembles the structured text prompt sent to the LLM
// driver: a fixed section order, missing sections omitted rather than left
// as empty headers, and a hard character budget enforced by trimming the
// least essential content first.
package prompt

import (
	"fmt"
	"strings"

	"github.com/reviewpipe/reviewpipe/internal/diff"
	"github.com/reviewpipe/reviewpipe/internal/domain"
)

// DefaultCharBudget is the hard cap on the composed user prompt's length.
const DefaultCharBudget = 64_000

// Input is everything the composer may render into a prompt. Any zero-value
// field causes its section to be omitted.
type Input struct {
	BusinessContext string
	PRMetadata      string
	Diff            diff.GitDiffDocument
	Context         []domain.ContextMatch
	ExpandedFiles   []domain.ExpandedFile
	Policies        []string
	ReviewFocus     string
}

// Config controls the composer's size enforcement.
type Config struct {
	CharBudget int
}

// DefaultConfig returns the documented ~64k character budget.
func DefaultConfig() Config {
	return Config{CharBudget: DefaultCharBudget}
}

// Composer assembles prompts under a fixed section order.
type Composer struct {
	cfg Config
}

// NewComposer builds a Composer with the given budget config.
func NewComposer(cfg Config) *Composer {
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = DefaultCharBudget
	}
	return &Composer{cfg: cfg}
}

// Compose returns the (systemPrompt, userPrompt) pair for in.
func (c *Composer) Compose(in Input) (string, string) {
	in = c.fitBudget(in)

	var b strings.Builder
	writeSection(&b, "BUSINESS_CONTEXT", in.BusinessContext)
	writeSection(&b, "PR_METADATA", in.PRMetadata)
	writeSection(&b, "DIFF", diff.FormatDocument(in.Diff))
	writeSection(&b, "CONTEXT", formatContext(in.Context))
	writeSection(&b, "EXPANDED_FILES", formatExpandedFiles(in.ExpandedFiles))
	writeSection(&b, "POLICIES", strings.Join(in.Policies, "\n"))
	writeSection(&b, "REVIEW_FOCUS", in.ReviewFocus)

	return systemPrompt, b.String()
}

func writeSection(b *strings.Builder, name, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	fmt.Fprintf(b, "## %s\n%s\n\n", name, content)
}

func formatContext(matches []domain.ContextMatch) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s (%s, confidence %.2f): %s\n", m.FilePath, m.Reason, m.Confidence, m.Evidence)
	}
	return b.String()
}

func formatExpandedFiles(files []domain.ExpandedFile) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "### %s\n```\n%s\n```\n\n", f.Path, f.Content)
	}
	return b.String()
}

// fitBudget trims in until the rendered prompt would fit within the
// configured character budget: expanded files are truncated first, then
// context matches are dropped lowest-confidence-first.
func (c *Composer) fitBudget(in Input) Input {
	for c.estimate(in) > c.cfg.CharBudget && len(in.ExpandedFiles) > 0 {
		in.ExpandedFiles = truncateOneExpandedFile(in.ExpandedFiles)
	}
	for c.estimate(in) > c.cfg.CharBudget && len(in.Context) > 0 {
		in.Context = dropLowestConfidence(in.Context)
	}
	return in
}

func (c *Composer) estimate(in Input) int {
	return len(in.BusinessContext) + len(in.PRMetadata) + len(diff.FormatDocument(in.Diff)) +
		len(formatContext(in.Context)) + len(formatExpandedFiles(in.ExpandedFiles)) +
		len(strings.Join(in.Policies, "\n")) + len(in.ReviewFocus)
}

// truncateOneExpandedFile halves the content of the largest expanded file,
// dropping it entirely once it's empty.
func truncateOneExpandedFile(files []domain.ExpandedFile) []domain.ExpandedFile {
	largest := 0
	for i, f := range files {
		if len(f.Content) > len(files[largest].Content) {
			largest = i
		}
	}
	content := files[largest].Content
	if len(content) <= 1 {
		return append(append([]domain.ExpandedFile{}, files[:largest]...), files[largest+1:]...)
	}
	files[largest].Content = content[:len(content)/2] + "\n...(truncated)"
	return files
}

func dropLowestConfidence(matches []domain.ContextMatch) []domain.ContextMatch {
	lowest := 0
	for i, m := range matches {
		if m.Confidence < matches[lowest].Confidence {
			lowest = i
		}
	}
	return append(append([]domain.ContextMatch{}, matches[:lowest]...), matches[lowest+1:]...)
}

const systemPrompt = `You are an automated code reviewer. Read the sections below in order and
respond with a single JSON object matching this shape:

{
  "summary": "<one paragraph>",
  "issues": [
    {
      "file": "<path>",
      "startLine": <int>,
      "severity": "critical|major|minor|info",
      "title": "<short title>",
      "suggestion": "<what to do about it>",
      "confidenceScore": <0..1>,
      "confidenceExplanation": "<why this confidence>",
      "suggestedFix": "<optional base64-encoded markdown diff>"
    }
  ]
}

Only flag issues whose file and line fall within the DIFF section. Do not
include any text outside the JSON object.`

package diff

import (
	"fmt"
	"strings"
)

// FileStatus values for a FileModification.
const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusDeleted  = "deleted"
	FileStatusRenamed  = "renamed"
)

// DevNull is the path git uses to mark a file as newly created or deleted.
const DevNull = "/dev/null"

// FileModification is a single file's change within a unified diff.
type FileModification struct {
	OldPath string
	NewPath string
	Status  string
	Hunks   []Hunk
}

// GitDiffDocument is the ordered set of file changes in a unified diff.
type GitDiffDocument struct {
	Files []FileModification
}

// ParseError reports a malformed unified diff.
type ParseError struct {
	Reason string
	Header string
}

func (e *ParseError) Error() string {
	if e.Header != "" {
		return fmt.Sprintf("diff: %s: %q", e.Reason, e.Header)
	}
	return fmt.Sprintf("diff: %s", e.Reason)
}

// ParseDocument parses a full unified-diff text (possibly spanning several
// files, as emitted by `git diff` or a hosted SCM's pull-request diff
// endpoint) into a GitDiffDocument.
//
// Unlike Parse, which tolerates malformed hunk headers by skipping them,
// ParseDocument fails with a *ParseError when a hunk header has a negative
// count or when a hunk's lines don't satisfy the counting invariant from
// the diff model: contextLines+deletedLines == oldCount and
// contextLines+addedLines == newCount.
func ParseDocument(text string) (GitDiffDocument, error) {
	var doc GitDiffDocument
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}

	for _, block := range splitFileBlocks(text) {
		file, err := parseFileBlock(block)
		if err != nil {
			return GitDiffDocument{}, err
		}
		doc.Files = append(doc.Files, file)
	}

	return doc, nil
}

// splitFileBlocks splits a multi-file unified diff on "diff --git" boundaries.
// Diffs that don't carry "diff --git" headers (a single-file patch) are
// returned as one block.
func splitFileBlocks(text string) []string {
	lines := strings.Split(text, "\n")

	var blocks []string
	var current []string
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") && len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func parseFileBlock(block string) (FileModification, error) {
	fm := FileModification{Status: FileStatusModified}

	lines := strings.Split(block, "\n")
	var hunkLines []string
	var inHunks bool

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			continue
		case strings.HasPrefix(line, "rename from "):
			fm.OldPath = strings.TrimPrefix(line, "rename from ")
			fm.Status = FileStatusRenamed
		case strings.HasPrefix(line, "rename to "):
			fm.NewPath = strings.TrimPrefix(line, "rename to ")
			fm.Status = FileStatusRenamed
		case strings.HasPrefix(line, "new file mode"):
			fm.Status = FileStatusAdded
		case strings.HasPrefix(line, "deleted file mode"):
			fm.Status = FileStatusDeleted
		case strings.HasPrefix(line, "--- "):
			fm.OldPath = trimDiffPathPrefix(strings.TrimPrefix(line, "--- "))
		case strings.HasPrefix(line, "+++ "):
			fm.NewPath = trimDiffPathPrefix(strings.TrimPrefix(line, "+++ "))
		case strings.HasPrefix(line, "@@"):
			inHunks = true
			hunkLines = append(hunkLines, line)
		case inHunks:
			hunkLines = append(hunkLines, line)
		}
	}

	if fm.OldPath == "" && fm.NewPath != "" {
		fm.OldPath = fm.NewPath
	}
	if fm.NewPath == "" && fm.OldPath != "" {
		fm.NewPath = fm.OldPath
	}
	if fm.NewPath == DevNull {
		fm.Status = FileStatusDeleted
	} else if fm.OldPath == DevNull && fm.Status == FileStatusModified {
		fm.Status = FileStatusAdded
	}

	parsed, err := ParseHunks(strings.Join(hunkLines, "\n"))
	if err != nil {
		return FileModification{}, err
	}
	fm.Hunks = parsed.Hunks

	return fm, nil
}

// trimDiffPathPrefix strips the "a/" or "b/" prefix git adds to --- and +++
// lines, and drops any trailing tab-separated metadata.
func trimDiffPathPrefix(path string) string {
	if idx := strings.IndexByte(path, '\t'); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimSpace(path)
	if path == DevNull {
		return DevNull
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

// ParseHunks parses the hunk-header-and-lines portion of a single file's
// patch, validating the counting invariant of each hunk strictly (unlike
// Parse, which skips malformed headers).
func ParseHunks(patch string) (ParsedDiff, error) {
	if strings.TrimSpace(patch) == "" {
		return ParsedDiff{}, nil
	}

	result, err := Parse(patch)
	if err != nil {
		return ParsedDiff{}, err
	}

	for i := range result.Hunks {
		if err := validateHunkHeader(result.Hunks[i]); err != nil {
			return ParsedDiff{}, err
		}
		if err := validateHunkCounts(result.Hunks[i]); err != nil {
			return ParsedDiff{}, err
		}
	}

	return result, nil
}

func validateHunkHeader(h Hunk) error {
	if h.OldLines < 0 || h.NewLines < 0 {
		return &ParseError{Reason: "negative hunk count"}
	}
	return nil
}

func validateHunkCounts(h Hunk) error {
	var context, added, deleted int
	for _, line := range h.Lines {
		switch line.Type {
		case LineContext:
			context++
		case LineAddition:
			added++
		case LineDeletion:
			deleted++
		}
	}

	if context+deleted != h.OldLines {
		return &ParseError{Reason: fmt.Sprintf(
			"hunk invariant violated: context(%d)+deleted(%d) != oldCount(%d)",
			context, deleted, h.OldLines)}
	}
	if context+added != h.NewLines {
		return &ParseError{Reason: fmt.Sprintf(
			"hunk invariant violated: context(%d)+added(%d) != newCount(%d)",
			context, added, h.NewLines)}
	}
	return nil
}

// AbsoluteNewLineOf returns the new-side file line number for the line at
// lineIndex within hunk.Lines. It walks hunk.Lines[0..lineIndex] skipping
// deletion lines, starting the counter at hunk.NewStart — the sole source
// of line-number truth consumed by the diff validator (C9).
func AbsoluteNewLineOf(hunk Hunk, lineIndex int) int {
	line := hunk.NewStart
	for i := 0; i < lineIndex && i < len(hunk.Lines); i++ {
		if hunk.Lines[i].Type != LineDeletion {
			line++
		}
	}
	return line
}

package diff

import (
	"fmt"
	"strings"
)

// FormatDocument renders a GitDiffDocument as the DIFF section of a review
// prompt: one block per file, its status marker, and each hunk with
// absolute new-side line numbers computed via AbsoluteNewLineOf so the
// model can cite exact line numbers without re-deriving them.
func FormatDocument(doc GitDiffDocument) string {
	if len(doc.Files) == 0 {
		return ""
	}

	var b strings.Builder
	for _, fm := range doc.Files {
		b.WriteString(fmt.Sprintf("File: %s (%s)\n", fm.NewPath, statusMarker(fm)))
		for _, hunk := range fm.Hunks {
			b.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines))
			for i, line := range hunk.Lines {
				prefix := linePrefix(line.Type)
				if line.Type == LineDeletion {
					b.WriteString(fmt.Sprintf("   %s%s\n", prefix, line.Content))
					continue
				}
				b.WriteString(fmt.Sprintf("%4d %s%s\n", AbsoluteNewLineOf(hunk, i), prefix, line.Content))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusMarker(fm FileModification) string {
	switch fm.Status {
	case FileStatusAdded:
		return "NEW FILE"
	case FileStatusDeleted:
		return "DELETED"
	case FileStatusRenamed:
		return fmt.Sprintf("RENAMED FROM %s", fm.OldPath)
	default:
		return "MODIFIED"
	}
}

func linePrefix(t LineType) string {
	switch t {
	case LineAddition:
		return "+"
	case LineDeletion:
		return "-"
	default:
		return " "
	}
}

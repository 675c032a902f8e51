package diff

// IsLineInDiff reports whether line (a new-side file line number) falls
// within any hunk of the named file inside doc. It looks the file up by
// FileModification.NewPath, falling back to OldPath, and returns false for
// deleted files (NewPath == "/dev/null") since they contribute no new-side
// lines. This is the sole gate (C9) between a finding and publication.
func IsLineInDiff(doc GitDiffDocument, file string, line int) bool {
	for _, fm := range doc.Files {
		if fm.NewPath != file && fm.OldPath != file {
			continue
		}
		if fm.NewPath == DevNull {
			return false
		}
		for _, hunk := range fm.Hunks {
			if line >= hunk.NewStart && line < hunk.NewStart+hunk.NewLines {
				return true
			}
		}
	}
	return false
}

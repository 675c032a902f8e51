// Package diff provides utilities for parsing unified diff format
// and mapping file line numbers to diff positions for GitHub PR review comments.
//
// The primary use case is to convert absolute file line numbers (from LLM
// findings) to GitHub's diff position format, which is required for creating
// inline PR review comments.
//
// Position in GitHub's API is 1-indexed from the first @@ hunk header,
// counting all lines in the diff (context, additions, and deletions).
//
// ParseDocument builds on top of the single-file hunk parser to handle a
// full multi-file unified diff (GitDiffDocument), and IsLineInDiff /
// FormatDocument consume that model to validate findings and render the
// DIFF section of a review prompt, respectively.
package diff

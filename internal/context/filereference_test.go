package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	ctxpkg "github.com/reviewpipe/reviewpipe/internal/context"
	"github.com/reviewpipe/reviewpipe/internal/diff"
)

func TestDiffFileReferenceExtractor_OnlyAddedLines(t *testing.T) {
	doc := diff.GitDiffDocument{Files: []diff.FileModification{{
		NewPath: "service.go",
		Hunks: []diff.Hunk{{
			Lines: []diff.Line{
				{Type: diff.LineAddition, Content: "  return billing.Invoice{}"},
				{Type: diff.LineDeletion, Content: "  return legacy.Invoice{}"},
				{Type: diff.LineContext, Content: "  // unchanged"},
			},
		}},
	}}}

	strategy := ctxpkg.NewDiffFileReferenceExtractor(1)
	res, err := strategy.Retrieve(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "billing.Invoice", res.Matches[0].FilePath)
}

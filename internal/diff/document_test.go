package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/diff"
)

func TestParseDocument_MultipleFiles(t *testing.T) {
	text := `diff --git a/foo.go b/foo.go
index 111..222 100644
--- a/foo.go
+++ b/foo.go
@@ -1,2 +1,3 @@
 package foo
+import "fmt"
 func Foo() {}
diff --git a/bar.go b/bar.go
index 333..444 100644
--- a/bar.go
+++ b/bar.go
@@ -5,1 +5,1 @@
-old line
+new line
`

	doc, err := diff.ParseDocument(text)
	require.NoError(t, err)
	require.Len(t, doc.Files, 2)

	require.Equal(t, "foo.go", doc.Files[0].NewPath)
	require.Equal(t, diff.FileStatusModified, doc.Files[0].Status)
	require.Len(t, doc.Files[0].Hunks, 1)

	require.Equal(t, "bar.go", doc.Files[1].NewPath)
}

func TestParseDocument_NewFile(t *testing.T) {
	text := `diff --git a/new.go b/new.go
new file mode 100644
index 000..111
--- /dev/null
+++ b/new.go
@@ -0,0 +1,2 @@
+package new
+func New() {}
`
	doc, err := diff.ParseDocument(text)
	require.NoError(t, err)
	require.Len(t, doc.Files, 1)
	require.Equal(t, diff.FileStatusAdded, doc.Files[0].Status)
	require.Equal(t, diff.DevNull, doc.Files[0].OldPath)
}

func TestParseDocument_DeletedFile(t *testing.T) {
	text := `diff --git a/old.go b/old.go
deleted file mode 100644
index 111..000
--- a/old.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package old
-func Old() {}
`
	doc, err := diff.ParseDocument(text)
	require.NoError(t, err)
	require.Len(t, doc.Files, 1)
	require.Equal(t, diff.FileStatusDeleted, doc.Files[0].Status)
	require.Equal(t, diff.DevNull, doc.Files[0].NewPath)
}

func TestParseDocument_RejectsNegativeCount(t *testing.T) {
	text := `diff --git a/foo.go b/foo.go
--- a/foo.go
+++ b/foo.go
@@ -1,-3 +1,2 @@
 one
 two
`
	_, err := diff.ParseDocument(text)
	require.Error(t, err)
}

func TestParseDocument_RejectsInvariantViolation(t *testing.T) {
	// oldCount claims 3 lines but only 2 are present (1 context + 1 deletion).
	text := `diff --git a/foo.go b/foo.go
--- a/foo.go
+++ b/foo.go
@@ -1,3 +1,1 @@
 one
-two
`
	_, err := diff.ParseDocument(text)
	require.Error(t, err)
}

func TestParseDocument_Empty(t *testing.T) {
	doc, err := diff.ParseDocument("")
	require.NoError(t, err)
	require.Empty(t, doc.Files)
}

func TestAbsoluteNewLineOf(t *testing.T) {
	text := `diff --git a/foo.go b/foo.go
--- a/foo.go
+++ b/foo.go
@@ -10,3 +10,4 @@
 context
+added
 context2
+added2
`
	doc, err := diff.ParseDocument(text)
	require.NoError(t, err)
	hunk := doc.Files[0].Hunks[0]

	require.Equal(t, 10, diff.AbsoluteNewLineOf(hunk, 0))
	require.Equal(t, 11, diff.AbsoluteNewLineOf(hunk, 1))
	require.Equal(t, 12, diff.AbsoluteNewLineOf(hunk, 2))
	require.Equal(t, 13, diff.AbsoluteNewLineOf(hunk, 3))
}

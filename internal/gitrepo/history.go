package gitrepo

import (
	"fmt"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// CoChangeCount is how often a file appeared in the same commit as the
// subject file, within the commit window a caller scans.
type CoChangeCount struct {
	Path  string
	Count int
}

// OpenLocal opens an already-checked-out working copy for history walking;
// it does not clone anything.
func OpenLocal(dir string) (*Repository, error) {
	repo, err := goGit.PlainOpenWithOptions(dir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return &Repository{repo: repo, dir: dir}, nil
}

// CoChangedFiles walks up to maxCommits commits that touched path and
// returns every other file that appeared alongside it, ranked by how often
// it co-occurred. It stops early once maxCommits commits touching path have
// been examined, not once maxCommits total commits have been walked.
func (r *Repository) CoChangedFiles(path string, maxCommits int) ([]CoChangeCount, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	commits, err := r.repo.Log(&goGit.LogOptions{From: head.Hash(), FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("walk history for %s: %w", path, err)
	}
	defer commits.Close()

	counts := map[string]int{}
	examined := 0
	err = commits.ForEach(func(c *object.Commit) error {
		if examined >= maxCommits {
			return storer.ErrStop
		}
		examined++

		siblings, err := filesInCommit(c)
		if err != nil {
			return nil // skip commits we can't diff cleanly
		}
		for _, sibling := range siblings {
			if sibling == path {
				continue
			}
			counts[sibling]++
		}
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, err
	}

	result := make([]CoChangeCount, 0, len(counts))
	for p, n := range counts {
		result = append(result, CoChangeCount{Path: p, Count: n})
	}
	return result, nil
}

// filesInCommit lists the paths touched by c relative to its first parent.
// Root commits (no parents) report every file in their tree.
func filesInCommit(c *object.Commit) ([]string, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	if c.NumParents() == 0 {
		var files []string
		err := tree.Files().ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files, err
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := parentTree.Diff(tree)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

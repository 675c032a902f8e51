// Package gitrepo wraps go-git for the two things the pipeline needs from a
// real checkout: a disposable clone for sandboxed test execution (C6) and a
// commit-history walk for the git co-change context strategy (C2).
package gitrepo

import (
	"context"
	"fmt"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CloneOptions configures a shallow, single-branch clone into a scratch
// directory for sandboxed execution.
type CloneOptions struct {
	URL      string
	Ref      string // branch, tag, or commit SHA to check out
	Dir      string // destination directory; must not already exist
	Depth    int    // 0 means full history
	AuthToken string // sent as the HTTP Basic password when set
}

// Clone fetches a repository into opts.Dir and checks out opts.Ref. The
// returned Repository can be closed by simply discarding opts.Dir; go-git
// keeps no external handles.
func Clone(ctx context.Context, opts CloneOptions) (*Repository, error) {
	cloneOpts := &goGit.CloneOptions{
		URL:   opts.URL,
		Depth: opts.Depth,
	}
	if opts.AuthToken != "" {
		cloneOpts.Auth = tokenAuth(opts.AuthToken)
	}

	repo, err := goGit.PlainCloneContext(ctx, opts.Dir, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", opts.URL, err)
	}

	if opts.Ref != "" {
		if err := checkout(repo, opts.Ref); err != nil {
			return nil, fmt.Errorf("checkout %s: %w", opts.Ref, err)
		}
	}

	return &Repository{repo: repo, dir: opts.Dir}, nil
}

func checkout(repo *goGit.Repository, ref string) error {
	hash, err := resolveRevision(repo, ref)
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	return wt.Checkout(&goGit.CheckoutOptions{Hash: *hash})
}

func resolveRevision(repo *goGit.Repository, ref string) (*plumbing.Hash, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
		fmt.Sprintf("refs/tags/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return hash, nil
	}
	return nil, lastErr
}

// Repository is an open, checked-out clone.
type Repository struct {
	repo *goGit.Repository
	dir  string
}

// Dir returns the filesystem path of the checkout, for handing to the
// sandbox as a bind mount source.
func (r *Repository) Dir() string {
	return r.dir
}

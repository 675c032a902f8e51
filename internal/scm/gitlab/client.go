// Package gitlab adapts github.com/xanzy/go-gitlab to the scm.Port
// contract, grounded on Gizzahub-gzh-cli-gitforge's use of the same SDK
// in the retrieval pack. repositoryID is GitLab's "namespace/project"
// path; changeRequestID is the merge request's project-scoped IID.
package gitlab

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xanzy/go-gitlab"
	gocontext "context"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/scm"
)

// Adapter implements scm.Port over the go-gitlab REST client.
type Adapter struct {
	client *gitlab.Client
}

// NewAdapter builds an Adapter authenticated with a personal or project
// access token against baseURL (empty means gitlab.com).
func NewAdapter(token, baseURL string) (*Adapter, error) {
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab: new client: %w", err)
	}
	return &Adapter{client: client}, nil
}

func iid(changeRequestID string) (int, error) {
	n, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return 0, fmt.Errorf("gitlab: changeRequestId must be an integer IID, got %q", changeRequestID)
	}
	return n, nil
}

func (a *Adapter) GetDiff(ctx gocontext.Context, repositoryID, changeRequestID string) (string, error) {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return "", err
	}
	mr, resp, err := a.client.MergeRequests.GetMergeRequestChanges(repositoryID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		if isNotFoundStatus(resp) {
			return "", &scm.NotFoundError{Op: "get merge request changes", Err: err}
		}
		return "", fmt.Errorf("gitlab: get merge request changes: %w", err)
	}

	var b strings.Builder
	for _, change := range mr.Changes {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", change.OldPath, change.NewPath)
		if change.NewFile {
			fmt.Fprintf(&b, "new file mode 100644\n--- /dev/null\n+++ b/%s\n", change.NewPath)
		} else if change.DeletedFile {
			fmt.Fprintf(&b, "deleted file mode 100644\n--- a/%s\n+++ /dev/null\n", change.OldPath)
		} else {
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", change.OldPath, change.NewPath)
		}
		b.WriteString(change.Diff)
		if !strings.HasSuffix(change.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func (a *Adapter) GetFileContent(ctx gocontext.Context, repositoryID, path, ref string) (string, error) {
	file, _, err := a.client.RepositoryFiles.GetRawFile(repositoryID, path, &gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("gitlab: get raw file: %w", err)
	}
	return string(file), nil
}

func (a *Adapter) GetPullRequestMetadata(ctx gocontext.Context, repositoryID, changeRequestID string) (scm.PullRequestMetadata, error) {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return scm.PullRequestMetadata{}, err
	}
	mr, _, err := a.client.MergeRequests.GetMergeRequest(repositoryID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return scm.PullRequestMetadata{}, fmt.Errorf("gitlab: get merge request: %w", err)
	}
	return scm.PullRequestMetadata{
		Title:       mr.Title,
		Description: mr.Description,
		Author:      mr.Author.Username,
		BaseBranch:  mr.TargetBranch,
		HeadBranch:  mr.SourceBranch,
		HeadSHA:     mr.SHA,
	}, nil
}

func (a *Adapter) ListRepositoryFiles(ctx gocontext.Context, repositoryID, ref string) ([]string, error) {
	var files []string
	opts := &gitlab.ListTreeOptions{Ref: gitlab.Ptr(ref), Recursive: gitlab.Ptr(true), PerPage: 100}
	for {
		items, resp, err := a.client.Repositories.ListTree(repositoryID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("gitlab: list tree: %w", err)
		}
		for _, item := range items {
			if item.Type == "blob" {
				files = append(files, item.Path)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (a *Adapter) PublishReview(ctx gocontext.Context, repositoryID, changeRequestID string, findings []domain.ReviewFinding, action scm.ReviewAction) error {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return err
	}

	for _, f := range findings {
		body := fmt.Sprintf("**[%s] %s**\n\n%s (%s:%d)", f.Severity, f.Title, f.Suggestion, f.File, f.StartLine)
		if _, _, err := a.client.Notes.CreateMergeRequestNote(repositoryID, mrIID, &gitlab.CreateMergeRequestNoteOptions{
			Body: gitlab.Ptr(body),
		}, gitlab.WithContext(ctx)); err != nil {
			return fmt.Errorf("gitlab: create note: %w", err)
		}
	}

	switch action {
	case scm.ActionApprove:
		if _, _, err := a.client.MergeRequestApprovals.ApproveMergeRequest(repositoryID, mrIID, nil, gitlab.WithContext(ctx)); err != nil {
			return fmt.Errorf("gitlab: approve merge request: %w", err)
		}
	case scm.ActionRequestChanges:
		// GitLab has no formal "request changes" state; an unapproval
		// plus the inline notes above is the closest equivalent.
		if _, err := a.client.MergeRequestApprovals.UnapproveMergeRequest(repositoryID, mrIID, gitlab.WithContext(ctx)); err != nil {
			return fmt.Errorf("gitlab: unapprove merge request: %w", err)
		}
	}
	return nil
}

func (a *Adapter) PublishSummaryComment(ctx gocontext.Context, repositoryID, changeRequestID, markdown string) error {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return err
	}
	_, _, err = a.client.Notes.CreateMergeRequestNote(repositoryID, mrIID, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(markdown),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gitlab: create summary note: %w", err)
	}
	return nil
}

func (a *Adapter) IsChangeRequestOpen(ctx gocontext.Context, repositoryID, changeRequestID string) (bool, error) {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return false, err
	}
	mr, _, err := a.client.MergeRequests.GetMergeRequest(repositoryID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("gitlab: get merge request: %w", err)
	}
	return mr.State == "opened", nil
}

func (a *Adapter) HasWriteAccess(ctx gocontext.Context, repositoryID string) (bool, error) {
	project, _, err := a.client.Projects.GetProject(repositoryID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("gitlab: get project: %w", err)
	}
	if project.Permissions == nil {
		return false, nil
	}
	access := project.Permissions.ProjectAccess
	if project.Permissions.GroupAccess != nil && (access == nil || project.Permissions.GroupAccess.AccessLevel > access.AccessLevel) {
		access = project.Permissions.GroupAccess
	}
	return access != nil && access.AccessLevel >= gitlab.DeveloperPermissions, nil
}

func (a *Adapter) GetCommitsFor(ctx gocontext.Context, repositoryID, changeRequestID string) ([]scm.Commit, error) {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return nil, err
	}
	commits, _, err := a.client.MergeRequests.GetMergeRequestCommits(repositoryID, mrIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab: get merge request commits: %w", err)
	}
	return toCommits(commits), nil
}

func (a *Adapter) GetCommitsSince(ctx gocontext.Context, repositoryID, ref, since string) ([]scm.Commit, error) {
	sinceTime, err := parseSince(since)
	if err != nil {
		return nil, err
	}
	commits, _, err := a.client.Commits.ListCommits(repositoryID, &gitlab.ListCommitsOptions{
		RefName: gitlab.Ptr(ref),
		Since:   gitlab.Ptr(sinceTime),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab: list commits: %w", err)
	}
	return toCommits(commits), nil
}

func (a *Adapter) DismissReview(ctx gocontext.Context, repositoryID, changeRequestID, reviewID string) error {
	// GitLab has no per-review dismissal; the closest analogue is
	// resolving the discussion thread the earlier review created.
	_, _, err := a.client.Discussions.ResolveMergeRequestDiscussion(repositoryID, mustIID(changeRequestID), reviewID, &gitlab.ResolveMergeRequestDiscussionOptions{
		Resolved: gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gitlab: resolve discussion: %w", err)
	}
	return nil
}

// ListBotReviews has no direct GitLab analogue to GitHub's per-review
// object; the closest equivalent is the set of top-level discussion
// threads the bot account started, each standing in for one prior
// published review.
func (a *Adapter) ListBotReviews(ctx gocontext.Context, repositoryID, changeRequestID, botUsername string) ([]scm.BotReview, error) {
	mrIID, err := iid(changeRequestID)
	if err != nil {
		return nil, err
	}

	var out []scm.BotReview
	opts := &gitlab.ListMergeRequestDiscussionsOptions{PerPage: 100}
	for {
		discussions, resp, err := a.client.Discussions.ListMergeRequestDiscussions(repositoryID, mrIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("gitlab: list discussions: %w", err)
		}
		for _, d := range discussions {
			if len(d.Notes) == 0 || d.Notes[0].Author.Username != botUsername {
				continue
			}
			out = append(out, scm.BotReview{
				ID:        d.ID,
				CommitSHA: d.Notes[0].CommitID,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func isNotFoundStatus(resp *gitlab.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	return resp.StatusCode == 404 || resp.StatusCode == 410
}

func mustIID(changeRequestID string) int {
	n, _ := iid(changeRequestID)
	return n
}

func toCommits(commits []*gitlab.Commit) []scm.Commit {
	out := make([]scm.Commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, scm.Commit{SHA: c.ID, Message: c.Message})
	}
	return out
}

// Package github adapts github.com/google/go-github/v66 to the scm.Port
// contract, grounded on Gizzahub-gzh-cli-gitforge's use of the same SDK
// in the retrieval pack.
package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/reviewpipe/reviewpipe/internal/domain"
	"github.com/reviewpipe/reviewpipe/internal/scm"
)

// Adapter implements scm.Port over the go-github REST client.
type Adapter struct {
	client *github.Client
}

// NewAdapter builds an Adapter authenticated with a personal access token
// or a GitHub App installation token.
func NewAdapter(token string) *Adapter {
	return &Adapter{client: github.NewClient(nil).WithAuthToken(token)}
}

func splitRepositoryID(repositoryID string) (owner, repo string, err error) {
	parts := strings.SplitN(repositoryID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: repositoryId must be owner/repo, got %q", repositoryID)
	}
	return parts[0], parts[1], nil
}

func (a *Adapter) GetDiff(ctx context.Context, repositoryID, changeRequestID string) (string, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return "", err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return "", fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	diff, resp, err := a.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		if isNotFoundStatus(resp) {
			return "", &scm.NotFoundError{Op: "get diff", Err: err}
		}
		return "", fmt.Errorf("github: get diff: %w", err)
	}
	return diff, nil
}

func (a *Adapter) GetFileContent(ctx context.Context, repositoryID, path, ref string) (string, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return "", err
	}
	content, _, _, err := a.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("github: get file content: %w", err)
	}
	if content == nil {
		return "", fmt.Errorf("github: %s is a directory, not a file", path)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("github: decode file content: %w", err)
	}
	return decoded, nil
}

func (a *Adapter) GetPullRequestMetadata(ctx context.Context, repositoryID, changeRequestID string) (scm.PullRequestMetadata, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return scm.PullRequestMetadata{}, err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return scm.PullRequestMetadata{}, fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	pr, _, err := a.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return scm.PullRequestMetadata{}, fmt.Errorf("github: get pull request: %w", err)
	}
	return scm.PullRequestMetadata{
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		Author:      pr.GetUser().GetLogin(),
		BaseBranch:  pr.GetBase().GetRef(),
		HeadBranch:  pr.GetHead().GetRef(),
		HeadSHA:     pr.GetHead().GetSHA(),
	}, nil
}

func (a *Adapter) ListRepositoryFiles(ctx context.Context, repositoryID, ref string) ([]string, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return nil, err
	}
	tree, _, err := a.client.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("github: get tree: %w", err)
	}
	files := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			files = append(files, entry.GetPath())
		}
	}
	return files, nil
}

func (a *Adapter) PublishReview(ctx context.Context, repositoryID, changeRequestID string, findings []domain.ReviewFinding, action scm.ReviewAction) error {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}

	comments := make([]*github.DraftReviewComment, 0, len(findings))
	for _, f := range findings {
		line := f.StartLine
		body := fmt.Sprintf("**[%s] %s**\n\n%s", f.Severity, f.Title, f.Suggestion)
		comments = append(comments, &github.DraftReviewComment{
			Path: github.Ptr(f.File),
			Line: github.Ptr(line),
			Body: github.Ptr(body),
		})
	}

	_, _, err = a.client.PullRequests.CreateReview(ctx, owner, repo, number, &github.PullRequestReviewRequest{
		Event:    github.Ptr(string(toGitHubEvent(action))),
		Comments: comments,
	})
	if err != nil {
		return fmt.Errorf("github: create review: %w", err)
	}
	return nil
}

func toGitHubEvent(action scm.ReviewAction) string {
	switch action {
	case scm.ActionApprove:
		return "APPROVE"
	case scm.ActionRequestChanges:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

func (a *Adapter) PublishSummaryComment(ctx context.Context, repositoryID, changeRequestID, markdown string) error {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	_, _, err = a.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(markdown)})
	if err != nil {
		return fmt.Errorf("github: create summary comment: %w", err)
	}
	return nil
}

func (a *Adapter) IsChangeRequestOpen(ctx context.Context, repositoryID, changeRequestID string) (bool, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return false, err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return false, fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	pr, _, err := a.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return false, fmt.Errorf("github: get pull request: %w", err)
	}
	return pr.GetState() == "open", nil
}

func (a *Adapter) HasWriteAccess(ctx context.Context, repositoryID string) (bool, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return false, err
	}
	repository, _, err := a.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return false, fmt.Errorf("github: get repository: %w", err)
	}
	return repository.GetPermissions()["push"], nil
}

func (a *Adapter) GetCommitsFor(ctx context.Context, repositoryID, changeRequestID string) ([]scm.Commit, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return nil, err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return nil, fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	commits, _, err := a.client.PullRequests.ListCommits(ctx, owner, repo, number, nil)
	if err != nil {
		return nil, fmt.Errorf("github: list commits: %w", err)
	}
	return toCommits(commits), nil
}

func (a *Adapter) GetCommitsSince(ctx context.Context, repositoryID, ref, since string) ([]scm.Commit, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return nil, err
	}
	sinceTime, err := parseSince(since)
	if err != nil {
		return nil, err
	}
	commits, _, err := a.client.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		SHA:   ref,
		Since: sinceTime,
	})
	if err != nil {
		return nil, fmt.Errorf("github: list commits since: %w", err)
	}
	return toCommits(commits), nil
}

func (a *Adapter) DismissReview(ctx context.Context, repositoryID, changeRequestID, reviewID string) error {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}
	id, err := strconv.ParseInt(reviewID, 10, 64)
	if err != nil {
		return fmt.Errorf("github: reviewId must be an integer, got %q", reviewID)
	}
	_, _, err = a.client.PullRequests.DismissReview(ctx, owner, repo, number, id, &github.PullRequestReviewDismissalRequest{
		Message: github.Ptr("Superseded by a newer automated review"),
	})
	if err != nil {
		return fmt.Errorf("github: dismiss review: %w", err)
	}
	return nil
}

func (a *Adapter) ListBotReviews(ctx context.Context, repositoryID, changeRequestID, botUsername string) ([]scm.BotReview, error) {
	owner, repo, err := splitRepositoryID(repositoryID)
	if err != nil {
		return nil, err
	}
	number, err := strconv.Atoi(changeRequestID)
	if err != nil {
		return nil, fmt.Errorf("github: changeRequestId must be an integer, got %q", changeRequestID)
	}

	var out []scm.BotReview
	opts := &github.ListOptions{PerPage: 100}
	for {
		reviews, resp, err := a.client.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list reviews: %w", err)
		}
		for _, r := range reviews {
			if r.GetUser().GetLogin() != botUsername {
				continue
			}
			out = append(out, scm.BotReview{
				ID:        strconv.FormatInt(r.GetID(), 10),
				CommitSHA: r.GetCommitID(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func isNotFoundStatus(resp *github.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	return resp.StatusCode == 404 || resp.StatusCode == 410
}

func toCommits(commits []*github.RepositoryCommit) []scm.Commit {
	out := make([]scm.Commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, scm.Commit{SHA: c.GetSHA(), Message: c.GetCommit().GetMessage()})
	}
	return out
}

package codehost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/jzempel/continuity/internal/git"
)

const draftPrefix = "Draft: "

// GitLab opens merge requests.
type GitLab struct {
	gl      *gitlab.Client
	info    git.RepoInfo
	baseURL string
}

// NewGitLab returns a GitLab host for the instance at baseURL.
func NewGitLab(token, baseURL string, info git.RepoInfo) (*GitLab, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	gl, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL+"/api/v4"), gitlab.WithoutRetries())
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &GitLab{gl: gl, info: info, baseURL: baseURL}, nil
}

func (h *GitLab) Name() string { return "gitlab" }

func (h *GitLab) pid() string {
	return h.info.Owner + "/" + h.info.Repo
}

// EnsurePullRequest implements Host with a merge request.
func (h *GitLab) EnsurePullRequest(ctx context.Context, in PullRequestInput) (*PullRequest, bool, error) {
	title := in.Title
	if in.Draft && !strings.HasPrefix(title, draftPrefix) {
		title = draftPrefix + title
	}

	open, _, err := h.gl.MergeRequests.ListProjectMergeRequests(h.pid(), &gitlab.ListProjectMergeRequestsOptions{
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(in.Head),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, false, classifyGitLab("list merge requests", in.Head, err)
	}

	if len(open) > 0 {
		existing := open[0]
		opts := &gitlab.UpdateMergeRequestOptions{
			Title:       gitlab.Ptr(title),
			Description: gitlab.Ptr(in.Body),
		}
		if in.Base != "" && existing.TargetBranch != in.Base {
			opts.TargetBranch = gitlab.Ptr(in.Base)
		}
		mr, _, err := h.gl.MergeRequests.UpdateMergeRequest(h.pid(), existing.IID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, false, classifyGitLab("update merge request", fmt.Sprintf("!%d", existing.IID), err)
		}
		return &PullRequest{Number: int(mr.IID), Title: mr.Title, URL: mr.WebURL}, false, nil
	}

	mr, _, err := h.gl.MergeRequests.CreateMergeRequest(h.pid(), &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(in.Body),
		SourceBranch: gitlab.Ptr(in.Head),
		TargetBranch: gitlab.Ptr(in.Base),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, false, classifyGitLab("create merge request", in.Head, err)
	}
	return &PullRequest{Number: int(mr.IID), Title: mr.Title, URL: mr.WebURL}, true, nil
}

func classifyGitLab(op, ref string, err error) error {
	var resp *gitlab.ErrorResponse
	if errors.As(err, &resp) {
		return classifyResponse(op, ref, resp.Response, resp.Message, err)
	}
	return classifyResponse(op, ref, nil, "", err)
}

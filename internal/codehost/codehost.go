// Package codehost opens pull requests (GitHub) and merge requests
// (GitLab) for work branches.
package codehost

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jzempel/continuity/internal/git"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

// PullRequestInput describes the request to open or refresh.
type PullRequestInput struct {
	Head  string // work branch
	Base  string // branch the work merges into
	Title string
	Body  string
	Draft bool
}

// PullRequest is an open pull or merge request.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// Host creates or updates pull requests.
type Host interface {
	Name() string
	// EnsurePullRequest updates the open request for Head or creates one.
	// created reports which happened.
	EnsurePullRequest(ctx context.Context, in PullRequestInput) (pr *PullRequest, created bool, err error)
}

// Options carries code host credentials.
type Options struct {
	GitHubToken  string
	GitHubAPIURL string // empty for github.com
	GitLabToken  string
	GitLabURL    string // empty to derive from the remote
}

// Factory picks a Host from a remote URL.
type Factory struct {
	opts Options
}

// NewFactory returns a Factory using opts.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts}
}

// HostFor returns the host serving remoteURL.
func (f *Factory) HostFor(ctx context.Context, remoteURL string) (Host, git.RepoInfo, error) {
	info, err := git.ParseRepoURL(remoteURL)
	if err != nil {
		return nil, git.RepoInfo{}, err
	}

	switch info.Platform {
	case git.PlatformGitHub:
		if f.opts.GitHubToken == "" {
			return nil, info, fmt.Errorf("no GitHub token configured\nRun: continuity init\nOr: export GITHUB_TOKEN=VALUE")
		}
		h, err := NewGitHub(ctx, f.opts.GitHubToken, f.opts.GitHubAPIURL, info)
		return h, info, err

	case git.PlatformGitLab:
		if f.opts.GitLabToken == "" {
			return nil, info, fmt.Errorf("no GitLab token configured\nRun: continuity init\nOr: export GITLAB_TOKEN=VALUE")
		}
		baseURL := f.opts.GitLabURL
		if baseURL == "" {
			baseURL = info.BaseURL()
		}
		h, err := NewGitLab(f.opts.GitLabToken, baseURL, info)
		return h, info, err
	}
	return nil, info, fmt.Errorf("unsupported platform: %s", info.Platform)
}

// classifyResponse maps a failed host response onto the shared classes.
func classifyResponse(op, ref string, resp *http.Response, message string, err error) error {
	if resp != nil {
		mutation := resp.Request != nil && resp.Request.Method != http.MethodGet
		if class := tracker.ClassifyStatus(resp.StatusCode, mutation); class != nil {
			return types.NewOpError(op, ref, class, "%s", message)
		}
		return types.NewOpError(op, ref, err, "")
	}
	return types.NewOpError(op, ref, tracker.ClassifyTransportError(err), "")
}

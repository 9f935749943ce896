package codehost

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/jzempel/continuity/internal/git"
	"github.com/jzempel/continuity/internal/tracker"
)

// GitHub opens pull requests.
type GitHub struct {
	gh   *github.Client
	info git.RepoInfo
}

// NewGitHub returns a GitHub host. apiURL overrides https://api.github.com/.
func NewGitHub(ctx context.Context, token, apiURL string, info git.RepoInfo) (*GitHub, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = tracker.DefaultTimeout
	gh := github.NewClient(httpClient)
	if apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", apiURL, err)
		}
		gh.BaseURL = base
	}
	return &GitHub{gh: gh, info: info}, nil
}

func (h *GitHub) Name() string { return "github" }

// EnsurePullRequest implements Host.
func (h *GitHub) EnsurePullRequest(ctx context.Context, in PullRequestInput) (*PullRequest, bool, error) {
	owner, repo := h.info.Owner, h.info.Repo
	open, _, err := h.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State: "open",
		Head:  owner + ":" + in.Head,
	})
	if err != nil {
		return nil, false, classifyGitHub("list pull requests", in.Head, err)
	}

	if len(open) > 0 {
		existing := open[0]
		edit := &github.PullRequest{Title: github.String(in.Title), Body: github.String(in.Body)}
		if existing.GetBase().GetRef() != in.Base && in.Base != "" {
			edit.Base = &github.PullRequestBranch{Ref: github.String(in.Base)}
		}
		pr, _, err := h.gh.PullRequests.Edit(ctx, owner, repo, existing.GetNumber(), edit)
		if err != nil {
			return nil, false, classifyGitHub("update pull request", fmt.Sprintf("#%d", existing.GetNumber()), err)
		}
		return fromGitHub(pr), false, nil
	}

	pr, _, err := h.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(in.Title),
		Head:  github.String(in.Head),
		Base:  github.String(in.Base),
		Body:  github.String(in.Body),
		Draft: github.Bool(in.Draft),
	})
	if err != nil {
		return nil, false, classifyGitHub("create pull request", in.Head, err)
	}
	return fromGitHub(pr), true, nil
}

func fromGitHub(pr *github.PullRequest) *PullRequest {
	return &PullRequest{Number: pr.GetNumber(), Title: pr.GetTitle(), URL: pr.GetHTMLURL()}
}

func classifyGitHub(op, ref string, err error) error {
	var resp *github.ErrorResponse
	if errors.As(err, &resp) {
		return classifyResponse(op, ref, resp.Response, resp.Message, err)
	}
	return classifyResponse(op, ref, nil, "", err)
}

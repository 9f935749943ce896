// Package github implements the tracker.Adapter for GitHub Issues.
//
// Workflow state lives in labels: an open issue carrying the started
// label is started, one carrying the finished label (or any closed issue)
// is finished. Checklist lines in the issue body are its tasks.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/jzempel/continuity/internal/git"
	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

func init() {
	tracker.Register("github", func() tracker.Adapter {
		return &Tracker{}
	})
}

const pageSize = 100

// Tracker implements tracker.Adapter for GitHub Issues.
type Tracker struct {
	client *gh.Client
	owner  string
	repo   string
	mapper statusMapper
	close  bool
	me     *gh.User
}

func (t *Tracker) Name() string         { return "github" }
func (t *Tracker) DisplayName() string  { return "GitHub Issues" }
func (t *Tracker) ConfigPrefix() string { return "github" }
func (t *Tracker) IDPattern() string    { return `[0-9]+` }

// Init reads github.token and the repository coordinates. When
// github.owner / github.repo are unset they are taken from the git remote.
func (t *Tracker) Init(ctx context.Context, cfg *tracker.Config) error {
	token, err := cfg.GetRequired("token")
	if err != nil {
		return err
	}
	t.owner, t.repo = cfg.Get("owner"), cfg.Get("repo")
	if t.owner == "" || t.repo == "" {
		if cfg.RemoteURL == "" {
			return fmt.Errorf("github.owner and github.repo not configured and no git remote to derive them from\nRun: continuity init")
		}
		info, err := git.ParseRepoURL(cfg.RemoteURL)
		if err != nil {
			return fmt.Errorf("derive github repository: %w", err)
		}
		if t.owner == "" {
			t.owner = info.Owner
		}
		if t.repo == "" {
			t.repo = info.Repo
		}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = tracker.DefaultTimeout
	t.client = gh.NewClient(httpClient)
	if apiURL := cfg.Get("api-url"); apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return fmt.Errorf("invalid github.api-url %q: %w", apiURL, err)
		}
		t.client.BaseURL = base
	}

	t.mapper = newStatusMapper(cfg.Get("labels.started"), cfg.Get("labels.finished"))
	t.close = cfg.GetDefault("close-on-finish", "true") != "false"
	return nil
}

// NormalizeID strips a leading "#".
func (t *Tracker) NormalizeID(selector string) string {
	return strings.TrimPrefix(strings.TrimSpace(selector), "#")
}

// RenderBranchSlug slugs the issue title.
func (t *Tracker) RenderBranchSlug(item *types.TrackerItem) string {
	return naming.Slug(item.Title)
}

func (t *Tracker) user(ctx context.Context) (*gh.User, error) {
	if t.me != nil {
		return t.me, nil
	}
	u, _, err := t.client.Users.Get(ctx, "")
	if err != nil {
		return nil, classify("get user", "", err)
	}
	t.me = u
	return u, nil
}

// CurrentUser returns the authenticated user.
func (t *Tracker) CurrentUser(ctx context.Context) (*types.User, error) {
	u, err := t.user(ctx)
	if err != nil {
		return nil, err
	}
	return toUser(u), nil
}

// ListCandidates returns open issues, pull requests excluded, ordered by
// milestone due date and then by creation.
func (t *Tracker) ListCandidates(ctx context.Context, filter types.Filter) ([]types.TrackerItem, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}
	if filter.AssignedToCurrentUser {
		me, err := t.user(ctx)
		if err != nil {
			return nil, err
		}
		opts.Assignee = me.GetLogin()
	}

	var issues []*gh.Issue
	for {
		page, resp, err := t.client.Issues.ListByRepo(ctx, t.owner, t.repo, opts)
		if err != nil {
			return nil, classify("list issues", t.owner+"/"+t.repo, err)
		}
		for _, issue := range page {
			if !issue.IsPullRequest() {
				issues = append(issues, issue)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	sortByMilestone(issues)

	items := make([]types.TrackerItem, 0, len(issues))
	for _, issue := range issues {
		item := t.toItem(issue)
		if filter.UnstartedOnly && !item.Status.Startable() {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// sortByMilestone puts issues with a milestone first, earliest due date
// first, keeping creation order otherwise.
func sortByMilestone(issues []*gh.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].GetMilestone(), issues[j].GetMilestone()
		if (a == nil) != (b == nil) {
			return a != nil
		}
		if a == nil || a.GetNumber() == b.GetNumber() {
			return false
		}
		ad, bd := a.GetDueOn().Time, b.GetDueOn().Time
		if ad.IsZero() != bd.IsZero() {
			return !ad.IsZero()
		}
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		return a.GetNumber() < b.GetNumber()
	})
}

func (t *Tracker) number(id string) (int, error) {
	n, err := strconv.Atoi(t.NormalizeID(id))
	if err != nil || n <= 0 {
		return 0, types.NewOpError("fetch", id, types.ErrNotFound, "issue numbers are positive integers")
	}
	return n, nil
}

// Fetch returns one issue.
func (t *Tracker) Fetch(ctx context.Context, id string) (*types.TrackerItem, error) {
	n, err := t.number(id)
	if err != nil {
		return nil, err
	}
	issue, _, err := t.client.Issues.Get(ctx, t.owner, t.repo, n)
	if err != nil {
		return nil, classify("fetch", "#"+strconv.Itoa(n), err)
	}
	if issue.IsPullRequest() {
		return nil, types.NewOpError("fetch", "#"+strconv.Itoa(n), types.ErrNotFound, "#%d is a pull request", n)
	}
	return t.toItem(issue), nil
}

// SetStatus moves the issue through the workflow labels. Once labeled
// started, an unassigned issue is claimed for the current user; finishing
// closes the issue unless github.close-on-finish is false.
func (t *Tracker) SetStatus(ctx context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error) {
	if err := tracker.CheckTransition(item.ID, item.Status, target); err != nil {
		return nil, err
	}
	n, err := t.number(item.ID)
	if err != nil {
		return nil, err
	}
	ref := item.Key

	switch target {
	case types.StatusStarted:
		if !item.HasLabel(t.mapper.started) {
			if _, _, err := t.client.Issues.AddLabelsToIssue(ctx, t.owner, t.repo, n, []string{t.mapper.started}); err != nil {
				return nil, classify("label", ref, err)
			}
		}
		if !item.Assigned() {
			me, err := t.user(ctx)
			if err != nil {
				return nil, err
			}
			if _, _, err := t.client.Issues.AddAssignees(ctx, t.owner, t.repo, n, []string{me.GetLogin()}); err != nil {
				return nil, classify("assign", ref, err)
			}
		}

	case types.StatusFinished:
		if !item.HasLabel(t.mapper.finished) {
			if _, _, err := t.client.Issues.AddLabelsToIssue(ctx, t.owner, t.repo, n, []string{t.mapper.finished}); err != nil {
				return nil, classify("label", ref, err)
			}
		}
		if item.HasLabel(t.mapper.started) {
			if _, err := t.client.Issues.RemoveLabelForIssue(ctx, t.owner, t.repo, n, t.mapper.started); err != nil {
				if err := classify("unlabel", ref, err); !errors.Is(err, types.ErrNotFound) {
					return nil, err
				}
			}
		}
		if t.close {
			req := &gh.IssueRequest{State: gh.String("closed")}
			if _, _, err := t.client.Issues.Edit(ctx, t.owner, t.repo, n, req); err != nil {
				return nil, classify("close", ref, err)
			}
		}

	default:
		if target != item.Status {
			return nil, types.NewOpError("set status", ref, types.ErrConflict, "github issues cannot move to %s", target)
		}
	}
	return t.Fetch(ctx, item.ID)
}

// SetTask toggles one checklist entry in the issue body.
func (t *Tracker) SetTask(ctx context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error) {
	n, err := t.number(item.ID)
	if err != nil {
		return nil, err
	}
	current, _, err := t.client.Issues.Get(ctx, t.owner, t.repo, n)
	if err != nil {
		return nil, classify("fetch", item.Key, err)
	}
	body, ok := SetTaskInBody(current.GetBody(), index, done)
	if !ok {
		return nil, types.NewOpError("set task", item.Key, types.ErrTaskNotFound,
			"task %d of %d", index, len(ParseTasks(current.GetBody())))
	}
	if body == current.GetBody() {
		return t.toItem(current), nil
	}
	updated, _, err := t.client.Issues.Edit(ctx, t.owner, t.repo, n, &gh.IssueRequest{Body: gh.String(body)})
	if err != nil {
		return nil, classify("set task", item.Key, err)
	}
	return t.toItem(updated), nil
}

// AddComment posts an issue comment.
func (t *Tracker) AddComment(ctx context.Context, item *types.TrackerItem, text string) error {
	n, err := t.number(item.ID)
	if err != nil {
		return err
	}
	_, _, err = t.client.Issues.CreateComment(ctx, t.owner, t.repo, n, &gh.IssueComment{Body: gh.String(text)})
	return classify("comment", item.Key, err)
}

// Comments lists issue comments, oldest first.
func (t *Tracker) Comments(ctx context.Context, item *types.TrackerItem) ([]types.Comment, error) {
	n, err := t.number(item.ID)
	if err != nil {
		return nil, err
	}
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: pageSize}}
	var out []types.Comment
	for {
		comments, resp, err := t.client.Issues.ListComments(ctx, t.owner, t.repo, n, opts)
		if err != nil {
			return nil, classify("comments", item.Key, err)
		}
		for _, c := range comments {
			out = append(out, types.Comment{
				Author:    c.GetUser().GetLogin(),
				Text:      c.GetBody(),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (t *Tracker) toItem(issue *gh.Issue) *types.TrackerItem {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	id := strconv.Itoa(issue.GetNumber())
	item := &types.TrackerItem{
		ID:          id,
		Key:         "#" + id,
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		URL:         issue.GetHTMLURL(),
		Status:      t.mapper.StatusFromTracker(issueState{State: issue.GetState(), Labels: labels}),
		RawStatus:   issue.GetState(),
		Kind:        types.KindIssue,
		Type:        "issue",
		Labels:      labels,
		Tasks:       ParseTasks(issue.GetBody()),
		CreatedAt:   issue.GetCreatedAt().Time,
		UpdatedAt:   issue.GetUpdatedAt().Time,
		Requester:   issue.GetUser().GetLogin(),
	}
	if a := issue.GetAssignee(); a != nil {
		item.Assignee = a.GetLogin()
		item.AssigneeID = strconv.FormatInt(a.GetID(), 10)
	} else if len(issue.Assignees) > 0 {
		item.Assignee = issue.Assignees[0].GetLogin()
		item.AssigneeID = strconv.FormatInt(issue.Assignees[0].GetID(), 10)
	}
	if m := issue.GetMilestone(); m != nil {
		item.Milestone = m.GetTitle()
	}
	return item
}

func toUser(u *gh.User) *types.User {
	return &types.User{
		ID:    strconv.FormatInt(u.GetID(), 10),
		Login: u.GetLogin(),
		Name:  u.GetName(),
		Email: u.GetEmail(),
	}
}

// classify maps go-github errors onto the shared error classes.
func classify(op, ref string, err error) error {
	if err == nil {
		return nil
	}
	var rate *gh.RateLimitError
	if errors.As(err, &rate) {
		return types.NewOpError(op, ref, types.ErrUnreachable, "rate limited until %s", rate.Rate.Reset.Format(time.Kitchen))
	}
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		mutation := resp.Response.Request != nil && resp.Response.Request.Method != http.MethodGet
		if class := tracker.ClassifyStatus(resp.Response.StatusCode, mutation); class != nil {
			return types.NewOpError(op, ref, class, "%s", resp.Message)
		}
		return types.NewOpError(op, ref, err, "")
	}
	return types.NewOpError(op, ref, tracker.ClassifyTransportError(err), "")
}

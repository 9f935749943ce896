// Package jira implements the tracker.Adapter for Jira issues over the
// REST v2 API.
package jira

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

func init() {
	tracker.Register("jira", func() tracker.Adapter {
		return &Tracker{}
	})
}

var numericID = regexp.MustCompile(`^[0-9]+$`)

// Tracker implements tracker.Adapter for Jira.
type Tracker struct {
	client      *Client
	projectKey  string
	transitions map[types.Status]string // configured transition ids
	review      string                  // transition id run when review opens a pull request
	mapper      statusMapper
	me          *User
}

func (t *Tracker) Name() string         { return "jira" }
func (t *Tracker) DisplayName() string  { return "Jira" }
func (t *Tracker) ConfigPrefix() string { return "jira" }
func (t *Tracker) IDPattern() string    { return `[A-Z][A-Z0-9_]*-[0-9]+` }

// Init reads jira.url, jira.username, jira.token, jira.project and the
// optional jira.transitions.start, jira.transitions.finish and
// jira.transitions.review ids.
func (t *Tracker) Init(_ context.Context, cfg *tracker.Config) error {
	baseURL, err := cfg.GetRequired("url")
	if err != nil {
		return err
	}
	token, err := cfg.GetRequired("token")
	if err != nil {
		return err
	}
	project, err := cfg.GetRequired("project")
	if err != nil {
		return err
	}
	t.client = NewClient(baseURL, cfg.Get("username"), token)
	t.projectKey = strings.ToUpper(project)
	t.transitions = map[types.Status]string{}
	if id := cfg.Get("transitions.start"); id != "" {
		t.transitions[types.StatusStarted] = id
	}
	if id := cfg.Get("transitions.finish"); id != "" {
		t.transitions[types.StatusFinished] = id
	}
	t.review = cfg.Get("transitions.review")
	return nil
}

// NormalizeID upper-cases the key and prefixes bare numbers with the
// project key, so "12" becomes "PROJ-12".
func (t *Tracker) NormalizeID(selector string) string {
	s := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(selector), "#"))
	if numericID.MatchString(s) && t.projectKey != "" {
		return t.projectKey + "-" + s
	}
	return s
}

// RenderBranchSlug slugs the issue summary.
func (t *Tracker) RenderBranchSlug(item *types.TrackerItem) string {
	return naming.Slug(item.Title)
}

func (t *Tracker) myself(ctx context.Context) (*User, error) {
	if t.me != nil {
		return t.me, nil
	}
	u, err := t.client.Myself(ctx)
	if err != nil {
		return nil, err
	}
	t.me = u
	return u, nil
}

// CurrentUser returns the authenticated user.
func (t *Tracker) CurrentUser(ctx context.Context) (*types.User, error) {
	u, err := t.myself(ctx)
	if err != nil {
		return nil, err
	}
	return toUser(u), nil
}

// candidateJQL builds the search for open project issues, oldest first.
func (t *Tracker) candidateJQL(filter types.Filter) string {
	clauses := []string{fmt.Sprintf("project = %s", t.projectKey)}
	if filter.UnstartedOnly {
		clauses = append(clauses, "statusCategory = "+CategoryNew)
	} else {
		clauses = append(clauses, "statusCategory != "+CategoryDone)
	}
	clauses = append(clauses, "issuetype not in subTaskIssueTypes()")
	if filter.AssignedToCurrentUser {
		clauses = append(clauses, "assignee = currentUser()")
	}
	return strings.Join(clauses, " AND ") + " ORDER BY created ASC"
}

// ListCandidates searches the project by JQL.
func (t *Tracker) ListCandidates(ctx context.Context, filter types.Filter) ([]types.TrackerItem, error) {
	issues, err := t.client.SearchIssues(ctx, t.candidateJQL(filter))
	if err != nil {
		return nil, err
	}
	items := make([]types.TrackerItem, 0, len(issues))
	for i := range issues {
		items = append(items, *t.toItem(&issues[i]))
	}
	return items, nil
}

// Fetch returns an issue with its sub-tasks as tasks.
func (t *Tracker) Fetch(ctx context.Context, id string) (*types.TrackerItem, error) {
	issue, err := t.client.GetIssue(ctx, t.NormalizeID(id))
	if err != nil {
		return nil, err
	}
	return t.toItem(issue), nil
}

// SetStatus runs the workflow transition that lands in the target status
// category. Once started, an unassigned issue is assigned to the current
// user.
func (t *Tracker) SetStatus(ctx context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error) {
	if err := tracker.CheckTransition(item.ID, item.Status, target); err != nil {
		return nil, err
	}
	transition, err := t.pickTransition(ctx, item.ID, target, t.transitions[target])
	if err != nil {
		return nil, err
	}
	if err := t.client.DoTransition(ctx, item.ID, transition.ID, requiredResolution(transition)); err != nil {
		return nil, err
	}

	if target == types.StatusStarted && !item.Assigned() {
		me, err := t.myself(ctx)
		if err != nil {
			return nil, err
		}
		if err := t.client.SetAssignee(ctx, item.ID, me); err != nil {
			return nil, err
		}
	}
	return t.Fetch(ctx, item.ID)
}

// TransitionForReview runs jira.transitions.review. It reports false when
// no review transition is configured.
func (t *Tracker) TransitionForReview(ctx context.Context, item *types.TrackerItem) (*types.TrackerItem, bool, error) {
	if t.review == "" {
		return nil, false, nil
	}
	transition, err := t.pickTransition(ctx, item.ID, types.StatusStarted, t.review)
	if err != nil {
		return nil, false, err
	}
	if err := t.client.DoTransition(ctx, item.ID, transition.ID, requiredResolution(transition)); err != nil {
		return nil, false, err
	}
	updated, err := t.Fetch(ctx, item.ID)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// pickTransition returns the configured transition when set, otherwise
// the first available one whose destination matches target.
func (t *Tracker) pickTransition(ctx context.Context, key string, target types.Status, configured string) (*Transition, error) {
	category, ok := categoryForStatus(target)
	if !ok {
		return nil, types.NewOpError("set status", key, types.ErrConflict, "no status category for %s", target)
	}
	available, err := t.client.Transitions(ctx, key)
	if err != nil {
		return nil, err
	}
	for i := range available {
		tr := &available[i]
		if configured != "" {
			if tr.ID == configured {
				return tr, nil
			}
			continue
		}
		if tr.To.StatusCategory != nil && tr.To.StatusCategory.Key == category {
			return tr, nil
		}
	}
	if configured != "" {
		return nil, types.NewOpError("set status", key, types.ErrConflict,
			"transition %s is not available", configured)
	}
	return nil, types.NewOpError("set status", key, types.ErrConflict,
		"no transition leads to a %q status", category)
}

func requiredResolution(tr *Transition) string {
	res := tr.Fields.Resolution
	if res == nil || !res.Required || len(res.AllowedValues) == 0 {
		return ""
	}
	return res.AllowedValues[0].ID
}

// SetTask transitions the sub-task at index to done or back to new.
func (t *Tracker) SetTask(ctx context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error) {
	if index < 1 || index > len(item.Tasks) {
		return nil, types.NewOpError("set task", item.ID, types.ErrTaskNotFound, "task %d of %d", index, len(item.Tasks))
	}
	task := item.Tasks[index-1]
	if task.Done != done {
		target := types.StatusUnstarted
		if done {
			target = types.StatusFinished
		}
		transition, err := t.pickTransition(ctx, task.ID, target, "")
		if err != nil {
			return nil, err
		}
		if err := t.client.DoTransition(ctx, task.ID, transition.ID, requiredResolution(transition)); err != nil {
			return nil, err
		}
	}
	return t.Fetch(ctx, item.ID)
}

// AddComment posts an issue comment.
func (t *Tracker) AddComment(ctx context.Context, item *types.TrackerItem, text string) error {
	return t.client.AddComment(ctx, item.ID, text)
}

// Comments lists issue comments.
func (t *Tracker) Comments(ctx context.Context, item *types.TrackerItem) ([]types.Comment, error) {
	comments, err := t.client.Comments(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Comment, 0, len(comments))
	for _, c := range comments {
		comment := types.Comment{Text: c.Body}
		if c.Author != nil {
			comment.Author = c.Author.DisplayName
		}
		if ts, err := ParseTimestamp(c.Created); err == nil {
			comment.CreatedAt = ts
		}
		out = append(out, comment)
	}
	return out, nil
}

func (t *Tracker) toItem(issue *Issue) *types.TrackerItem {
	f := issue.Fields
	item := &types.TrackerItem{
		ID:          issue.Key,
		Key:         issue.Key,
		Title:       f.Summary,
		Description: f.Description,
		URL:         t.client.BrowseURL(issue.Key),
		Status:      t.mapper.StatusFromTracker(f.Status),
		Kind:        types.KindIssue,
		Labels:      f.Labels,
	}
	if f.Status != nil {
		item.RawStatus = f.Status.Name
	}
	if f.IssueType != nil {
		item.Type = f.IssueType.Name
	}
	if f.Assignee != nil {
		item.Assignee = firstNonEmpty(f.Assignee.Name, f.Assignee.DisplayName)
		item.AssigneeID = firstNonEmpty(f.Assignee.AccountID, f.Assignee.Key)
	}
	if f.Reporter != nil {
		item.Requester = f.Reporter.DisplayName
	}
	if ts, err := ParseTimestamp(f.Created); err == nil {
		item.CreatedAt = ts
	}
	if ts, err := ParseTimestamp(f.Updated); err == nil {
		item.UpdatedAt = ts
	}
	for i, sub := range f.Subtasks {
		item.Tasks = append(item.Tasks, types.Task{
			Number:      i + 1,
			ID:          sub.Key,
			Description: sub.Fields.Summary,
			Done:        t.mapper.StatusFromTracker(sub.Fields.Status) == types.StatusFinished,
		})
	}
	return item
}

func toUser(u *User) *types.User {
	return &types.User{
		ID:    firstNonEmpty(u.AccountID, u.Key),
		Login: u.Name,
		Name:  u.DisplayName,
		Email: u.EmailAddress,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package pivotal implements the tracker.Adapter for Pivotal Tracker stories.
package pivotal

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

func init() {
	tracker.Register("pivotal", func() tracker.Adapter {
		return &Tracker{}
	})
}

// Tracker implements tracker.Adapter for Pivotal Tracker.
type Tracker struct {
	client *Client
	mapper statusMapper
	me     *Person
}

func (t *Tracker) Name() string         { return "pivotal" }
func (t *Tracker) DisplayName() string  { return "Pivotal Tracker" }
func (t *Tracker) ConfigPrefix() string { return "pivotal" }
func (t *Tracker) IDPattern() string    { return `[0-9]+` }

// Init reads pivotal.token, pivotal.project-id and pivotal.api-url.
func (t *Tracker) Init(_ context.Context, cfg *tracker.Config) error {
	token, err := cfg.GetRequired("token")
	if err != nil {
		return err
	}
	rawProject, err := cfg.GetRequired("project-id")
	if err != nil {
		return err
	}
	projectID, err := strconv.ParseInt(rawProject, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pivotal.project-id %q: %w", rawProject, err)
	}
	t.client = NewClient(cfg.Get("api-url"), token, projectID)
	return nil
}

// NormalizeID strips a leading "#".
func (t *Tracker) NormalizeID(selector string) string {
	return strings.TrimPrefix(strings.TrimSpace(selector), "#")
}

// RenderBranchSlug slugs the story name.
func (t *Tracker) RenderBranchSlug(item *types.TrackerItem) string {
	return naming.Slug(item.Title)
}

func (t *Tracker) currentPerson(ctx context.Context) (*Person, error) {
	if t.me != nil {
		return t.me, nil
	}
	me, err := t.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	t.me = me
	return me, nil
}

// CurrentUser returns the token owner.
func (t *Tracker) CurrentUser(ctx context.Context) (*types.User, error) {
	me, err := t.currentPerson(ctx)
	if err != nil {
		return nil, err
	}
	return personToUser(me), nil
}

// ListCandidates returns workable backlog stories in backlog order.
func (t *Tracker) ListCandidates(ctx context.Context, filter types.Filter) ([]types.TrackerItem, error) {
	stories, err := t.client.Backlog(ctx)
	if err != nil {
		return nil, err
	}

	var me *Person
	if filter.AssignedToCurrentUser {
		if me, err = t.currentPerson(ctx); err != nil {
			return nil, err
		}
	}

	var items []types.TrackerItem
	for i := range stories {
		s := &stories[i]
		if !workableTypes[s.StoryType] {
			continue
		}
		item := t.toItem(s, nil)
		if filter.UnstartedOnly && !item.Status.Startable() {
			continue
		}
		if item.Status == types.StatusFinished {
			continue
		}
		if me != nil && !ownedBy(s, me.ID) {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// Fetch returns a story with its tasks.
func (t *Tracker) Fetch(ctx context.Context, id string) (*types.TrackerItem, error) {
	sid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	story, err := t.client.GetStory(ctx, sid)
	if err != nil {
		return nil, err
	}
	tasks, err := t.client.Tasks(ctx, sid)
	if err != nil {
		return nil, err
	}
	return t.toItem(story, tasks), nil
}

// SetStatus writes the story state. Starting an unowned story makes the
// current user its owner.
func (t *Tracker) SetStatus(ctx context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error) {
	if err := tracker.CheckTransition(item.ID, item.Status, target); err != nil {
		return nil, err
	}
	state, ok := stateForStatus(target)
	if !ok {
		return nil, types.NewOpError("set status", item.ID, types.ErrConflict, "no story state for %s", target)
	}
	sid, err := parseID(item.ID)
	if err != nil {
		return nil, err
	}

	var owners []int64
	if target == types.StatusStarted && !item.Assigned() {
		me, err := t.currentPerson(ctx)
		if err != nil {
			return nil, err
		}
		owners = []int64{me.ID}
	}

	story, err := t.client.UpdateStory(ctx, sid, state, owners)
	if err != nil {
		return nil, err
	}
	updated := t.toItem(story, nil)
	updated.Tasks = item.Tasks
	return updated, nil
}

// SetTask toggles the task at index.
func (t *Tracker) SetTask(ctx context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error) {
	if index < 1 || index > len(item.Tasks) {
		return nil, types.NewOpError("set task", item.ID, types.ErrTaskNotFound, "task %d of %d", index, len(item.Tasks))
	}
	sid, err := parseID(item.ID)
	if err != nil {
		return nil, err
	}
	taskID, err := strconv.ParseInt(item.Tasks[index-1].ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q: %w", item.Tasks[index-1].ID, err)
	}
	if _, err := t.client.SetTask(ctx, sid, taskID, done); err != nil {
		return nil, err
	}

	tasks, err := t.client.Tasks(ctx, sid)
	if err != nil {
		return nil, err
	}
	updated := item.Clone()
	updated.Tasks = convertTasks(tasks)
	return updated, nil
}

// AddComment posts a story comment.
func (t *Tracker) AddComment(ctx context.Context, item *types.TrackerItem, text string) error {
	sid, err := parseID(item.ID)
	if err != nil {
		return err
	}
	return t.client.AddComment(ctx, sid, text)
}

// Comments lists story comments.
func (t *Tracker) Comments(ctx context.Context, item *types.TrackerItem) ([]types.Comment, error) {
	sid, err := parseID(item.ID)
	if err != nil {
		return nil, err
	}
	comments, err := t.client.Comments(ctx, sid)
	if err != nil {
		return nil, err
	}
	out := make([]types.Comment, 0, len(comments))
	for _, c := range comments {
		author := ""
		if c.Person != nil {
			author = c.Person.Name
		}
		out = append(out, types.Comment{Author: author, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

func (t *Tracker) toItem(s *Story, tasks []Task) *types.TrackerItem {
	item := &types.TrackerItem{
		ID:          strconv.FormatInt(s.ID, 10),
		Key:         fmt.Sprintf("#%d", s.ID),
		Title:       s.Name,
		Description: s.Description,
		URL:         s.URL,
		Status:      t.mapper.StatusFromTracker(s.CurrentState),
		RawStatus:   s.CurrentState,
		Kind:        types.KindStory,
		Type:        s.StoryType,
		Estimate:    s.Estimate,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Tasks:       convertTasks(tasks),
	}
	if len(s.Owners) > 0 {
		item.Assignee = s.Owners[0].Name
		item.AssigneeID = strconv.FormatInt(s.Owners[0].ID, 10)
	} else if len(s.OwnerIDs) > 0 {
		item.AssigneeID = strconv.FormatInt(s.OwnerIDs[0], 10)
	}
	if s.RequestedBy != nil {
		item.Requester = s.RequestedBy.Name
	}
	for _, l := range s.Labels {
		item.Labels = append(item.Labels, l.Name)
	}
	return item
}

func convertTasks(tasks []Task) []types.Task {
	if len(tasks) == 0 {
		return nil
	}
	sorted := append([]Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	out := make([]types.Task, len(sorted))
	for i, task := range sorted {
		out[i] = types.Task{
			Number:      i + 1,
			ID:          strconv.FormatInt(task.ID, 10),
			Description: task.Description,
			Done:        task.Complete,
		}
	}
	return out
}

func ownedBy(s *Story, id int64) bool {
	for _, o := range s.OwnerIDs {
		if o == id {
			return true
		}
	}
	for _, o := range s.Owners {
		if o.ID == id {
			return true
		}
	}
	return false
}

func personToUser(p *Person) *types.User {
	return &types.User{
		ID:    strconv.FormatInt(p.ID, 10),
		Login: p.Username,
		Name:  p.Name,
		Email: p.Email,
	}
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "#"), 10, 64)
	if err != nil {
		return 0, types.NewOpError("fetch", id, types.ErrNotFound, "story ids are numeric")
	}
	return n, nil
}

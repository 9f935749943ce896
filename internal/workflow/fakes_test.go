package workflow

import (
	"context"
	"fmt"

	"github.com/jzempel/continuity/internal/codehost"
	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

// fakeGit is an in-memory repository.
type fakeGit struct {
	current  string
	branches map[string]bool
	bases    map[string]string
	aliases  map[string]string
	hooks    map[string]string

	pushed   []string
	merged   []string
	deleted  []string
	messages []string

	mergeArgs []string
	remote    map[string]bool

	mergeErr        error
	createErr       error
	deleteRemoteErr error
}

func newFakeGit(current string) *fakeGit {
	return &fakeGit{
		current:  current,
		branches: map[string]bool{current: true},
		bases:    map[string]string{},
		aliases:  map[string]string{},
		hooks:    map[string]string{},
		remote:   map[string]bool{},
	}
}

func (g *fakeGit) CurrentBranch(context.Context) (string, error) { return g.current, nil }

func (g *fakeGit) BranchExists(_ context.Context, name string) (bool, error) {
	return g.branches[name], nil
}

func (g *fakeGit) CreateBranch(_ context.Context, name, _ string) error {
	if g.createErr != nil {
		return g.createErr
	}
	if g.branches[name] {
		return types.NewOpError("create branch", name, types.ErrConflict, "branch already exists")
	}
	g.branches[name] = true
	g.current = name
	return nil
}

func (g *fakeGit) Push(_ context.Context, branch, remote string) error {
	g.pushed = append(g.pushed, remote+"/"+branch)
	g.remote[branch] = true
	return nil
}

func (g *fakeGit) Merge(_ context.Context, branch, message string, extra ...string) error {
	if g.mergeErr != nil {
		return g.mergeErr
	}
	g.mergeArgs = append(g.mergeArgs, extra...)
	g.merged = append(g.merged, branch)
	g.messages = append(g.messages, message)
	return nil
}

func (g *fakeGit) DeleteBranch(_ context.Context, name string) error {
	delete(g.branches, name)
	g.deleted = append(g.deleted, name)
	return nil
}

func (g *fakeGit) DeleteRemoteBranch(_ context.Context, name, remote string) (bool, error) {
	if g.deleteRemoteErr != nil {
		return false, g.deleteRemoteErr
	}
	if !g.remote[name] {
		return false, nil
	}
	delete(g.remote, name)
	g.deleted = append(g.deleted, remote+"/"+name)
	return true, nil
}

func (g *fakeGit) BranchBase(_ context.Context, branch string) (string, error) {
	return g.bases[branch], nil
}

func (g *fakeGit) SetBranchBase(_ context.Context, branch, base string) error {
	g.bases[branch] = base
	return nil
}

func (g *fakeGit) ClearBranchBase(_ context.Context, branch string) error {
	delete(g.bases, branch)
	return nil
}

func (g *fakeGit) InstallHook(_ context.Context, name, script string) (string, error) {
	backup := ""
	if _, ok := g.hooks[name]; ok {
		backup = ".git/hooks/" + name + ".bak"
	}
	g.hooks[name] = script
	return backup, nil
}

func (g *fakeGit) SetAlias(_ context.Context, name, command string) error {
	g.aliases[name] = command
	return nil
}

// fakeTracker is an in-memory backend. Every method counts as a remote call.
type fakeTracker struct {
	kind   string
	me     *types.User
	items  map[string]*types.TrackerItem
	order  []string
	calls  []string
	notes  []string
	status map[string][]types.Status

	commentErr error
	statusErr  error
}

func newFakeTracker(kind string) *fakeTracker {
	return &fakeTracker{
		kind:   kind,
		me:     &types.User{ID: "101", Login: "pat"},
		items:  map[string]*types.TrackerItem{},
		status: map[string][]types.Status{},
	}
}

func (f *fakeTracker) add(id, title string, status types.Status, assignee string) *types.TrackerItem {
	item := &types.TrackerItem{
		ID:       id,
		Key:      "#" + id,
		Title:    title,
		Status:   status,
		Kind:     f.kind,
		Assignee: assignee,
		URL:      "https://tracker.test/" + id,
	}
	f.items[id] = item
	f.order = append(f.order, id)
	return item
}

func (f *fakeTracker) Name() string                  { return "fake" }
func (f *fakeTracker) DisplayName() string           { return "Fake" }
func (f *fakeTracker) ConfigPrefix() string          { return "fake" }
func (f *fakeTracker) IDPattern() string             { return `[0-9]+` }
func (f *fakeTracker) NormalizeID(sel string) string { return trimHash(sel) }

func (f *fakeTracker) RenderBranchSlug(item *types.TrackerItem) string {
	return naming.Slug(item.Title)
}

func (f *fakeTracker) Init(context.Context, *tracker.Config) error {
	f.calls = append(f.calls, "init")
	return nil
}

func (f *fakeTracker) CurrentUser(context.Context) (*types.User, error) {
	f.calls = append(f.calls, "current user")
	return f.me, nil
}

func (f *fakeTracker) ListCandidates(_ context.Context, filter types.Filter) ([]types.TrackerItem, error) {
	f.calls = append(f.calls, "list")
	var out []types.TrackerItem
	for _, id := range f.order {
		item := f.items[id]
		if item.Status == types.StatusFinished {
			continue
		}
		if filter.UnstartedOnly && !item.Status.Startable() {
			continue
		}
		if filter.AssignedToCurrentUser && !item.AssignedTo(f.me) {
			continue
		}
		out = append(out, *item.Clone())
	}
	return out, nil
}

func (f *fakeTracker) Fetch(_ context.Context, id string) (*types.TrackerItem, error) {
	f.calls = append(f.calls, "fetch "+id)
	item, ok := f.items[id]
	if !ok {
		return nil, types.NewOpError("fetch", id, types.ErrNotFound, "")
	}
	return item.Clone(), nil
}

func (f *fakeTracker) SetStatus(_ context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error) {
	f.calls = append(f.calls, fmt.Sprintf("set status %s %s", item.ID, target))
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	stored := f.items[item.ID]
	if err := tracker.CheckTransition(item.Key, stored.Status, target); err != nil {
		return nil, err
	}
	stored.Status = target
	stored.RawStatus = string(target)
	if target == types.StatusStarted && !stored.Assigned() {
		stored.Assignee = f.me.Login
	}
	f.status[item.ID] = append(f.status[item.ID], target)
	return stored.Clone(), nil
}

func (f *fakeTracker) SetTask(_ context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error) {
	f.calls = append(f.calls, fmt.Sprintf("set task %s %d %t", item.ID, index, done))
	stored := f.items[item.ID]
	if index < 1 || index > len(stored.Tasks) {
		return nil, types.NewOpError("set task", item.Key, types.ErrTaskNotFound, "")
	}
	stored.Tasks[index-1].Done = done
	return stored.Clone(), nil
}

func (f *fakeTracker) AddComment(_ context.Context, item *types.TrackerItem, text string) error {
	f.calls = append(f.calls, "comment "+item.ID)
	if f.commentErr != nil {
		return f.commentErr
	}
	f.notes = append(f.notes, text)
	return nil
}

func (f *fakeTracker) Comments(context.Context, *types.TrackerItem) ([]types.Comment, error) {
	return nil, nil
}

func trimHash(s string) string {
	if len(s) > 0 && s[0] == '#' {
		return s[1:]
	}
	return s
}

// fakeHost records pull requests by head branch.
// reviewTracker adds a review transition to fakeTracker.
type reviewTracker struct {
	*fakeTracker
	reviewErr error
	moved     bool
}

func (f *reviewTracker) TransitionForReview(_ context.Context, item *types.TrackerItem) (*types.TrackerItem, bool, error) {
	f.calls = append(f.calls, "review "+item.ID)
	if f.reviewErr != nil {
		return nil, false, f.reviewErr
	}
	stored := f.items[item.ID]
	stored.RawStatus = "In Review"
	f.moved = true
	return stored.Clone(), true, nil
}

type fakeHost struct {
	prs    map[string]*codehost.PullRequest
	inputs []codehost.PullRequestInput
}

func newFakeHost() *fakeHost {
	return &fakeHost{prs: map[string]*codehost.PullRequest{}}
}

func (h *fakeHost) Name() string { return "fakehost" }

func (h *fakeHost) EnsurePullRequest(_ context.Context, in codehost.PullRequestInput) (*codehost.PullRequest, bool, error) {
	h.inputs = append(h.inputs, in)
	if pr, ok := h.prs[in.Head]; ok {
		pr.Title = in.Title
		return pr, false, nil
	}
	pr := &codehost.PullRequest{
		Number: len(h.prs) + 1,
		Title:  in.Title,
		URL:    fmt.Sprintf("https://host.test/pull/%d", len(h.prs)+1),
	}
	h.prs[in.Head] = pr
	return pr, true, nil
}

// memoryWriter captures what Init persists.
type memoryWriter struct {
	values map[string]string
	fresh  bool
}

func (w *memoryWriter) Write(values map[string]string, fresh bool) error {
	if fresh || w.values == nil {
		w.values = map[string]string{}
	}
	for k, v := range values {
		w.values[k] = v
	}
	w.fresh = fresh
	return nil
}

func testSettings() config.Settings {
	return config.DefaultSettings()
}

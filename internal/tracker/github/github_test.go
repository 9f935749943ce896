package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v60/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/tracker/testutil"
	"github.com/jzempel/continuity/internal/types"
)

const checklist = "Users should sign in with GitHub.\r\n\r\n- [ ] register app\r\n- [ ] callback handler\r\n* [ ] docs\r\n"

// fakeGitHub serves the subset of the issues API the adapter uses.
type fakeGitHub struct {
	mu       sync.Mutex
	me       *gh.User
	issues   map[int]*gh.Issue
	order    []int
	comments map[int][]*gh.IssueComment
}

var (
	issuePath    = regexp.MustCompile(`^/repos/acme/widgets/issues/(\d+)$`)
	assignPath   = regexp.MustCompile(`^/repos/acme/widgets/issues/(\d+)/assignees$`)
	labelsPath   = regexp.MustCompile(`^/repos/acme/widgets/issues/(\d+)/labels$`)
	labelPath    = regexp.MustCompile(`^/repos/acme/widgets/issues/(\d+)/labels/([^/]+)$`)
	commentsPath = regexp.MustCompile(`^/repos/acme/widgets/issues/(\d+)/comments$`)
)

func newFakeGitHub() *fakeGitHub {
	f := &fakeGitHub{
		me:       &gh.User{ID: gh.Int64(101), Login: gh.String("pat"), Name: gh.String("Pat Developer")},
		issues:   map[int]*gh.Issue{},
		comments: map[int][]*gh.IssueComment{},
	}
	due := gh.Timestamp{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	f.add(&gh.Issue{Number: gh.Int(40), Title: gh.String("Backlog chore"), State: gh.String("open")})
	f.add(&gh.Issue{Number: gh.Int(42), Title: gh.String("Add OAuth login"), State: gh.String("open"), Body: gh.String(checklist)})
	f.add(&gh.Issue{Number: gh.Int(43), Title: gh.String("In flight"), State: gh.String("open"),
		Labels:    []*gh.Label{{Name: gh.String("started")}},
		Assignee:  &gh.User{ID: gh.Int64(7), Login: gh.String("sam")},
		Milestone: &gh.Milestone{Number: gh.Int(1), Title: gh.String("v1"), DueOn: &due}})
	f.add(&gh.Issue{Number: gh.Int(44), Title: gh.String("A pull request"), State: gh.String("open"),
		PullRequestLinks: &gh.PullRequestLinks{URL: gh.String("https://api.github.com/repos/acme/widgets/pulls/44")}})
	f.add(&gh.Issue{Number: gh.Int(45), Title: gh.String("Mine, started"), State: gh.String("open"),
		Labels:   []*gh.Label{{Name: gh.String("started")}},
		Assignee: f.me})
	return f
}

func (f *fakeGitHub) add(issue *gh.Issue) {
	n := issue.GetNumber()
	issue.HTMLURL = gh.String("https://github.com/acme/widgets/issues/" + strconv.Itoa(n))
	issue.CreatedAt = &gh.Timestamp{Time: time.Date(2024, 1, n%28+1, 0, 0, 0, 0, time.UTC)}
	f.issues[n] = issue
	f.order = append(f.order, n)
}

func (f *fakeGitHub) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/user":
		testutil.WriteJSON(w, http.StatusOK, f.me)

	case path == "/repos/acme/widgets/issues" && r.Method == http.MethodGet:
		assignee := r.URL.Query().Get("assignee")
		var out []*gh.Issue
		for _, n := range f.order {
			issue := f.issues[n]
			if issue.GetState() != "open" {
				continue
			}
			if assignee != "" && issue.GetAssignee().GetLogin() != assignee {
				continue
			}
			out = append(out, issue)
		}
		testutil.WriteJSON(w, http.StatusOK, out)

	case issuePath.MatchString(path):
		issue, ok := f.issues[pathNumber(issuePath, path)]
		if !ok {
			testutil.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		if r.Method == http.MethodPatch {
			var req gh.IssueRequest
			_ = testutil.DecodeJSON(r, &req)
			if req.State != nil {
				issue.State = req.State
			}
			if req.Body != nil {
				issue.Body = req.Body
			}
		}
		testutil.WriteJSON(w, http.StatusOK, issue)

	case assignPath.MatchString(path) && r.Method == http.MethodPost:
		issue := f.issues[pathNumber(assignPath, path)]
		var req struct {
			Assignees []string `json:"assignees"`
		}
		_ = testutil.DecodeJSON(r, &req)
		if len(req.Assignees) > 0 && req.Assignees[0] == f.me.GetLogin() {
			issue.Assignee = f.me
			issue.Assignees = []*gh.User{f.me}
		}
		testutil.WriteJSON(w, http.StatusCreated, issue)

	case labelsPath.MatchString(path) && r.Method == http.MethodPost:
		issue := f.issues[pathNumber(labelsPath, path)]
		var names []string
		_ = testutil.DecodeJSON(r, &names)
		for _, name := range names {
			issue.Labels = append(issue.Labels, &gh.Label{Name: gh.String(name)})
		}
		testutil.WriteJSON(w, http.StatusOK, issue.Labels)

	case labelPath.MatchString(path) && r.Method == http.MethodDelete:
		m := labelPath.FindStringSubmatch(path)
		n, _ := strconv.Atoi(m[1])
		issue := f.issues[n]
		kept := issue.Labels[:0]
		for _, l := range issue.Labels {
			if l.GetName() != m[2] {
				kept = append(kept, l)
			}
		}
		issue.Labels = kept
		testutil.WriteJSON(w, http.StatusOK, issue.Labels)

	case commentsPath.MatchString(path):
		n := pathNumber(commentsPath, path)
		if r.Method == http.MethodPost {
			var c gh.IssueComment
			_ = testutil.DecodeJSON(r, &c)
			c.User = f.me
			c.CreatedAt = &gh.Timestamp{Time: time.Now()}
			f.comments[n] = append(f.comments[n], &c)
			testutil.WriteJSON(w, http.StatusCreated, c)
			return
		}
		testutil.WriteJSON(w, http.StatusOK, f.comments[n])

	default:
		testutil.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
}

func pathNumber(re *regexp.Regexp, path string) int {
	n, _ := strconv.Atoi(re.FindStringSubmatch(path)[1])
	return n
}

func newTestTracker(t *testing.T) (*Tracker, *fakeGitHub, *testutil.MockTrackerServer) {
	t.Helper()
	backend := newFakeGitHub()
	server := testutil.NewMockTrackerServer()
	server.SetDefaultHandler(backend.handle)
	t.Cleanup(server.Close)

	cfg := tracker.NewConfig("github", tracker.MapStore{
		"github.token":   "ghp_test",
		"github.api-url": server.URL(),
	})
	cfg.RemoteURL = "git@github.com:acme/widgets.git"
	tr := &Tracker{}
	require.NoError(t, tr.Init(context.Background(), cfg))
	return tr, backend, server
}

func TestConformance(t *testing.T) {
	testutil.RunConformance(t, func(t *testing.T) *testutil.Fixture {
		tr, _, server := newTestTracker(t)
		return &testutil.Fixture{Adapter: tr, Server: server, ItemID: "42", MissingID: "9999"}
	})
}

func TestRegistered(t *testing.T) {
	a, err := tracker.NewAdapter("github")
	require.NoError(t, err)
	assert.Equal(t, "GitHub Issues", a.DisplayName())
}

func TestInit(t *testing.T) {
	t.Run("derives repository from remote", func(t *testing.T) {
		tr, _, _ := newTestTracker(t)
		assert.Equal(t, "acme", tr.owner)
		assert.Equal(t, "widgets", tr.repo)
	})

	t.Run("explicit repository wins", func(t *testing.T) {
		cfg := tracker.NewConfig("github", tracker.MapStore{
			"github.token": "t", "github.owner": "other", "github.repo": "thing",
		})
		cfg.RemoteURL = "https://github.com/acme/widgets.git"
		tr := &Tracker{}
		require.NoError(t, tr.Init(context.Background(), cfg))
		assert.Equal(t, "other", tr.owner)
		assert.Equal(t, "thing", tr.repo)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		err := (&Tracker{}).Init(context.Background(), tracker.NewConfig("github", tracker.MapStore{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "github.token not configured")
	})

	t.Run("no remote", func(t *testing.T) {
		err := (&Tracker{}).Init(context.Background(), tracker.NewConfig("github", tracker.MapStore{"github.token": "t"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "github.owner")
	})
}

func TestStatusMapping(t *testing.T) {
	m := newStatusMapper("", "")
	tests := []struct {
		state  issueState
		expect types.Status
	}{
		{issueState{State: "open"}, types.StatusUnstarted},
		{issueState{State: "open", Labels: []string{"bug", "Started"}}, types.StatusStarted},
		{issueState{State: "open", Labels: []string{"started", "finished"}}, types.StatusFinished},
		{issueState{State: "closed"}, types.StatusFinished},
		{issueState{State: "weird"}, types.StatusOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, m.StatusFromTracker(tt.state), "%+v", tt.state)
	}
	assert.Equal(t, types.StatusOther, m.StatusFromTracker("open"))

	custom := newStatusMapper("wip", "done")
	assert.Equal(t, types.StatusStarted, custom.StatusFromTracker(issueState{State: "open", Labels: []string{"wip"}}))
}

func TestParseTasks(t *testing.T) {
	tasks := ParseTasks(checklist)
	require.Len(t, tasks, 3)
	assert.Equal(t, "register app", tasks[0].Description)
	assert.Equal(t, "docs", tasks[2].Description)
	assert.Equal(t, 3, tasks[2].Number)

	mixed := ParseTasks("1. [x] numbered\n  + [X] nested\n- [] not a task\n-[ ] nor this\n")
	require.Len(t, mixed, 2)
	assert.True(t, mixed[0].Done)
	assert.True(t, mixed[1].Done)

	assert.Empty(t, ParseTasks("no checklist here"))
}

func TestSetTaskInBody(t *testing.T) {
	body, ok := SetTaskInBody(checklist, 2, true)
	require.True(t, ok)
	assert.Equal(t, "Users should sign in with GitHub.\r\n\r\n- [ ] register app\r\n- [x] callback handler\r\n* [ ] docs\r\n", body)

	back, ok := SetTaskInBody(body, 2, false)
	require.True(t, ok)
	assert.Equal(t, checklist, back)

	_, ok = SetTaskInBody(checklist, 4, true)
	assert.False(t, ok)
	_, ok = SetTaskInBody(checklist, 0, true)
	assert.False(t, ok)
}

func TestListCandidates(t *testing.T) {
	tr, _, server := newTestTracker(t)
	ctx := context.Background()

	t.Run("skips pull requests and orders by milestone", func(t *testing.T) {
		items, err := tr.ListCandidates(ctx, types.Filter{})
		require.NoError(t, err)
		var ids []string
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		assert.Equal(t, []string{"43", "40", "42", "45"}, ids)
		assert.Equal(t, "v1", items[0].Milestone)
	})

	t.Run("unstarted only", func(t *testing.T) {
		items, err := tr.ListCandidates(ctx, types.Filter{UnstartedOnly: true})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "40", items[0].ID)
		assert.Equal(t, "42", items[1].ID)
	})

	t.Run("assigned to current user", func(t *testing.T) {
		server.ClearRequests()
		items, err := tr.ListCandidates(ctx, types.Filter{AssignedToCurrentUser: true})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "45", items[0].ID)
		reqs := server.FindRequests(http.MethodGet, "/repos/acme/widgets/issues")
		require.Len(t, reqs, 1)
		assert.Contains(t, reqs[0].Query, "assignee=pat")
	})
}

func TestFetch(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	item, err := tr.Fetch(ctx, "#43")
	require.NoError(t, err)
	assert.Equal(t, "#43", item.Key)
	assert.Equal(t, types.StatusStarted, item.Status)
	assert.Equal(t, "sam", item.Assignee)
	assert.Equal(t, "7", item.AssigneeID)

	_, err = tr.Fetch(ctx, "44")
	assert.True(t, errors.Is(err, types.ErrNotFound), "pull requests are not issues: %v", err)

	_, err = tr.Fetch(ctx, "abc")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestStartAssignsAndLabels(t *testing.T) {
	tr, backend, server := newTestTracker(t)
	ctx := context.Background()

	item, err := tr.Fetch(ctx, "42")
	require.NoError(t, err)
	started, err := tr.SetStatus(ctx, item, types.StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, "pat", started.Assignee)
	assert.True(t, started.HasLabel("started"))
	assert.Len(t, server.FindRequests(http.MethodPost, "/repos/acme/widgets/issues/42/assignees"), 1)

	finished, err := tr.SetStatus(ctx, started, types.StatusFinished)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinished, finished.Status)
	assert.False(t, finished.HasLabel("started"))
	backend.mu.Lock()
	assert.Equal(t, "closed", backend.issues[42].GetState())
	backend.mu.Unlock()
}

func TestRejectedLabelLeavesAssigneeAlone(t *testing.T) {
	tr, backend, server := newTestTracker(t)
	ctx := context.Background()
	server.SetResponse("POST /repos/acme/widgets/issues/42/labels", http.StatusUnprocessableEntity,
		map[string]string{"message": "Validation Failed"})

	item, err := tr.Fetch(ctx, "42")
	require.NoError(t, err)
	require.False(t, item.Assigned())
	_, err = tr.SetStatus(ctx, item, types.StatusStarted)
	require.Error(t, err)
	assert.Empty(t, server.FindRequests(http.MethodPost, "/repos/acme/widgets/issues/42/assignees"))
	backend.mu.Lock()
	assert.Empty(t, backend.issues[42].Assignees)
	backend.mu.Unlock()
}

func TestStartAssignedIssueKeepsAssignee(t *testing.T) {
	tr, _, server := newTestTracker(t)
	ctx := context.Background()

	item, err := tr.Fetch(ctx, "43")
	require.NoError(t, err)
	_, err = tr.SetStatus(ctx, item, types.StatusStarted)
	require.NoError(t, err)
	assert.Zero(t, server.CountMutations(), "already started and assigned")
}

func TestStartFinishedIssueConflicts(t *testing.T) {
	tr, backend, server := newTestTracker(t)
	ctx := context.Background()
	backend.mu.Lock()
	backend.issues[40].State = gh.String("closed")
	backend.mu.Unlock()

	item, err := tr.Fetch(ctx, "40")
	require.NoError(t, err)
	_, err = tr.SetStatus(ctx, item, types.StatusStarted)
	assert.True(t, errors.Is(err, types.ErrConflict), "got %v", err)
	assert.Zero(t, server.CountMutations())
}

func TestSetTaskOutOfRange(t *testing.T) {
	tr, _, server := newTestTracker(t)
	ctx := context.Background()

	item, err := tr.Fetch(ctx, "42")
	require.NoError(t, err)
	_, err = tr.SetTask(ctx, item, 4, true)
	assert.True(t, errors.Is(err, types.ErrTaskNotFound), "got %v", err)
	assert.Zero(t, server.CountMutations())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", "#1", nil))

	resp := &http.Response{StatusCode: http.StatusUnprocessableEntity, Request: &http.Request{Method: http.MethodPost, URL: &url.URL{Path: "/repos/acme/widgets/issues/1/labels"}}}
	err := classify("label", "#1", &gh.ErrorResponse{Response: resp, Message: "Validation Failed"})
	assert.True(t, errors.Is(err, types.ErrConflict))
	assert.Contains(t, err.Error(), "Validation Failed")

	err = classify("fetch", "#1", errors.New("dial tcp: connection refused"))
	assert.True(t, errors.Is(err, types.ErrUnreachable))

	err = classify("fetch", "#1", context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
}

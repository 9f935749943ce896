package pivotal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/tracker/testutil"
	"github.com/jzempel/continuity/internal/types"
)

const projectID = 99

// fakeBackend is an in-memory Pivotal project.
type fakeBackend struct {
	mu           sync.Mutex
	me           Person
	stories      map[int64]*Story
	order        []int64
	tasks        map[int64][]Task
	comments     map[int64][]Comment
	emptyCurrent bool
	// rejectStart makes story updates to "started" fail with 400, as
	// Pivotal does for unestimated features.
	rejectStart bool
}

var (
	storyPath    = regexp.MustCompile(`^/projects/\d+/stories/(\d+)$`)
	tasksPath    = regexp.MustCompile(`^/projects/\d+/stories/(\d+)/tasks$`)
	taskPath     = regexp.MustCompile(`^/projects/\d+/stories/(\d+)/tasks/(\d+)$`)
	commentsPath = regexp.MustCompile(`^/projects/\d+/stories/(\d+)/comments$`)
)

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		me:       Person{ID: 101, Name: "Pat Developer", Username: "pat", Email: "pat@example.com"},
		stories:  map[int64]*Story{},
		tasks:    map[int64][]Task{},
		comments: map[int64][]Comment{},
	}
	est := 2.0
	b.add(&Story{ID: 555, Name: "Add OAuth login", StoryType: "feature", CurrentState: StateUnstarted, Estimate: &est,
		URL: "https://www.pivotaltracker.com/story/show/555"})
	b.tasks[555] = []Task{
		{ID: 1, Description: "Register app", Position: 1},
		{ID: 2, Description: "Callback handler", Position: 2},
		{ID: 3, Description: "Docs", Position: 3},
	}
	b.add(&Story{ID: 556, Name: "Release 1.0", StoryType: "release", CurrentState: StateUnstarted})
	b.add(&Story{ID: 557, Name: "In flight", StoryType: "bug", CurrentState: StateStarted, OwnerIDs: []int64{7}})
	b.add(&Story{ID: 558, Name: "Rejected chore", StoryType: "chore", CurrentState: StateRejected, OwnerIDs: []int64{101}})
	return b
}

func (b *fakeBackend) add(s *Story) {
	s.ProjectID = projectID
	s.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.stories[s.ID] = s
	b.order = append(b.order, s.ID)
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/me":
		testutil.WriteJSON(w, http.StatusOK, b.me)

	case path == fmt.Sprintf("/projects/%d/iterations", projectID):
		if r.URL.Query().Get("scope") == "current_backlog" && b.emptyCurrent {
			testutil.WriteJSON(w, http.StatusOK, []Iteration{})
			return
		}
		it := Iteration{Number: 1}
		for _, id := range b.order {
			it.Stories = append(it.Stories, *b.stories[id])
		}
		testutil.WriteJSON(w, http.StatusOK, []Iteration{it})

	case storyPath.MatchString(path):
		id := pathID(storyPath, path, 1)
		s, ok := b.stories[id]
		if !ok {
			testutil.WriteJSON(w, http.StatusNotFound, map[string]string{"kind": "error", "code": "unfound_resource"})
			return
		}
		if r.Method == http.MethodPut {
			var body struct {
				CurrentState string  `json:"current_state"`
				OwnerIDs     []int64 `json:"owner_ids"`
			}
			_ = testutil.DecodeJSON(r, &body)
			if body.CurrentState == StateStarted && b.rejectStart {
				testutil.WriteJSON(w, http.StatusBadRequest, map[string]string{"kind": "error", "code": "invalid_parameter"})
				return
			}
			s.CurrentState = body.CurrentState
			if len(body.OwnerIDs) > 0 {
				s.OwnerIDs = body.OwnerIDs
			}
		}
		testutil.WriteJSON(w, http.StatusOK, s)

	case tasksPath.MatchString(path):
		testutil.WriteJSON(w, http.StatusOK, b.tasks[pathID(tasksPath, path, 1)])

	case taskPath.MatchString(path) && r.Method == http.MethodPut:
		sid, tid := pathID(taskPath, path, 1), pathID(taskPath, path, 2)
		var body struct {
			Complete bool `json:"complete"`
		}
		_ = testutil.DecodeJSON(r, &body)
		for i := range b.tasks[sid] {
			if b.tasks[sid][i].ID == tid {
				b.tasks[sid][i].Complete = body.Complete
				testutil.WriteJSON(w, http.StatusOK, b.tasks[sid][i])
				return
			}
		}
		testutil.WriteJSON(w, http.StatusNotFound, nil)

	case commentsPath.MatchString(path):
		sid := pathID(commentsPath, path, 1)
		if r.Method == http.MethodPost {
			var body struct {
				Text string `json:"text"`
			}
			_ = testutil.DecodeJSON(r, &body)
			c := Comment{ID: int64(len(b.comments[sid]) + 1), Text: body.Text, Person: &b.me}
			b.comments[sid] = append(b.comments[sid], c)
			testutil.WriteJSON(w, http.StatusOK, c)
			return
		}
		testutil.WriteJSON(w, http.StatusOK, b.comments[sid])

	default:
		testutil.WriteJSON(w, http.StatusNotFound, nil)
	}
}

func pathID(re *regexp.Regexp, path string, group int) int64 {
	n, _ := strconv.ParseInt(re.FindStringSubmatch(path)[group], 10, 64)
	return n
}

func setup(t *testing.T) (*Tracker, *fakeBackend, *testutil.MockTrackerServer) {
	t.Helper()
	backend := newFakeBackend()
	server := testutil.NewMockTrackerServer()
	t.Cleanup(server.Close)
	server.SetDefaultHandler(backend.handle)

	a := &Tracker{}
	cfg := tracker.NewConfig("pivotal", tracker.MapStore{
		"pivotal.token":      "tok",
		"pivotal.project-id": strconv.Itoa(projectID),
		"pivotal.api-url":    server.URL(),
	})
	require.NoError(t, a.Init(context.Background(), cfg))
	return a, backend, server
}

func TestConformance(t *testing.T) {
	testutil.RunConformance(t, func(t *testing.T) *testutil.Fixture {
		a, _, server := setup(t)
		return &testutil.Fixture{Adapter: a, Server: server, ItemID: "555", MissingID: "999"}
	})
}

func TestRegistered(t *testing.T) {
	a, err := tracker.NewAdapter("pivotal")
	require.NoError(t, err)
	assert.Equal(t, "Pivotal Tracker", a.DisplayName())
}

func TestInitRequiresProject(t *testing.T) {
	t.Setenv("PIVOTAL_PROJECT_ID", "")
	a := &Tracker{}
	err := a.Init(context.Background(), tracker.NewConfig("pivotal", tracker.MapStore{"pivotal.token": "x"}))
	assert.ErrorContains(t, err, "pivotal.project-id not configured")

	err = a.Init(context.Background(), tracker.NewConfig("pivotal", tracker.MapStore{
		"pivotal.token": "x", "pivotal.project-id": "abc",
	}))
	assert.ErrorContains(t, err, "invalid pivotal.project-id")
}

func TestStatusMapping(t *testing.T) {
	var m statusMapper
	tests := map[string]types.Status{
		"unscheduled": types.StatusUnstarted,
		"unstarted":   types.StatusUnstarted,
		"planned":     types.StatusUnstarted,
		"started":     types.StatusStarted,
		"finished":    types.StatusFinished,
		"delivered":   types.StatusFinished,
		"accepted":    types.StatusFinished,
		"rejected":    types.StatusRejected,
		"mystery":     types.StatusOther,
		"":            types.StatusOther,
	}
	for native, want := range tests {
		assert.Equal(t, want, m.StatusFromTracker(native), native)
	}
	assert.Equal(t, types.StatusOther, m.StatusFromTracker(42))
}

func TestListCandidates(t *testing.T) {
	a, backend, server := setup(t)
	ctx := context.Background()

	t.Run("unstarted skips releases and started stories", func(t *testing.T) {
		items, err := a.ListCandidates(ctx, types.Filter{UnstartedOnly: true})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "555", items[0].ID)
		assert.Equal(t, "558", items[1].ID)
		assert.Equal(t, types.StatusRejected, items[1].Status)
	})

	t.Run("open includes started", func(t *testing.T) {
		items, err := a.ListCandidates(ctx, types.Filter{})
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("mywork", func(t *testing.T) {
		items, err := a.ListCandidates(ctx, types.Filter{AssignedToCurrentUser: true})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "558", items[0].ID)
	})

	t.Run("falls back to backlog scope", func(t *testing.T) {
		backend.mu.Lock()
		backend.emptyCurrent = true
		backend.mu.Unlock()
		server.ClearRequests()
		items, err := a.ListCandidates(ctx, types.Filter{UnstartedOnly: true})
		require.NoError(t, err)
		assert.Len(t, items, 2)

		reqs := server.FindRequests(http.MethodGet, fmt.Sprintf("/projects/%d/iterations", projectID))
		require.Len(t, reqs, 2)
		assert.Contains(t, reqs[0].Query, "scope=current_backlog")
		assert.Contains(t, reqs[1].Query, "scope=backlog")
	})
}

func TestFetchStory555(t *testing.T) {
	a, _, server := setup(t)
	item, err := a.Fetch(context.Background(), "#555")
	require.NoError(t, err)
	assert.Equal(t, "555", item.ID)
	assert.Equal(t, "#555", item.Key)
	assert.Equal(t, types.KindStory, item.Kind)
	assert.Equal(t, "feature", item.Type)
	assert.Equal(t, "add-oauth-login", a.RenderBranchSlug(item))
	require.NotNil(t, item.Estimate)
	assert.Equal(t, 2.0, *item.Estimate)

	reqs := server.GetRequests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "tok", reqs[0].Headers.Get("X-TrackerToken"))
}

func TestStartSetsOwner(t *testing.T) {
	a, backend, server := setup(t)
	ctx := context.Background()
	item, err := a.Fetch(ctx, "555")
	require.NoError(t, err)

	started, err := a.SetStatus(ctx, item, types.StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, types.StatusStarted, started.Status)
	backend.mu.Lock()
	assert.Equal(t, []int64{101}, backend.stories[555].OwnerIDs)
	backend.mu.Unlock()
	assert.Len(t, started.Tasks, 3)

	puts := server.FindRequests(http.MethodPut, "/projects/99/stories/555")
	require.Len(t, puts, 1)
	assert.JSONEq(t, `{"current_state":"started","owner_ids":[101]}`, string(puts[0].Body))
}

func TestStartRejectedByBackend(t *testing.T) {
	a, backend, _ := setup(t)
	backend.mu.Lock()
	backend.rejectStart = true
	backend.mu.Unlock()
	ctx := context.Background()
	item, err := a.Fetch(ctx, "555")
	require.NoError(t, err)

	_, err = a.SetStatus(ctx, item, types.StatusStarted)
	assert.True(t, errors.Is(err, types.ErrConflict), "got %v", err)
}

func TestBackwardsTransitionIsConflict(t *testing.T) {
	a, _, server := setup(t)
	ctx := context.Background()
	item, err := a.Fetch(ctx, "557")
	require.NoError(t, err)
	server.ClearRequests()

	_, err = a.SetStatus(ctx, item, types.StatusUnstarted)
	assert.True(t, errors.Is(err, types.ErrConflict))
	assert.Zero(t, server.CountMutations())
}

func TestSetTaskOutOfRange(t *testing.T) {
	a, _, server := setup(t)
	ctx := context.Background()
	item, err := a.Fetch(ctx, "555")
	require.NoError(t, err)
	server.ClearRequests()

	_, err = a.SetTask(ctx, item, 4, true)
	assert.True(t, errors.Is(err, types.ErrTaskNotFound))
	_, err = a.SetTask(ctx, item, 0, true)
	assert.True(t, errors.Is(err, types.ErrTaskNotFound))
	assert.Zero(t, server.CountMutations())
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	a, _, _ := setup(t)
	_, err := a.Fetch(context.Background(), "PROJ-1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

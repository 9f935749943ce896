package testutil

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

// Fixture is a fake backend seeded for the conformance suite.
type Fixture struct {
	// Adapter is initialized against Server.
	Adapter tracker.Adapter
	Server  *MockTrackerServer
	// ItemID names an unstarted, unassigned item with exactly three
	// incomplete tasks.
	ItemID string
	// MissingID names an item the backend does not know.
	MissingID string
}

// FixtureFunc builds a fresh fixture per subtest.
type FixtureFunc func(t *testing.T) *Fixture

// RunConformance checks the adapter behavior every backend must share.
func RunConformance(t *testing.T, setup FixtureFunc) {
	ctx := context.Background()

	t.Run("current user", func(t *testing.T) {
		f := setup(t)
		u, err := f.Adapter.CurrentUser(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, u.String())
	})

	t.Run("id pattern and normalize", func(t *testing.T) {
		f := setup(t)
		re := regexp.MustCompile("^(?:" + f.Adapter.IDPattern() + ")$")
		assert.True(t, re.MatchString(f.ItemID), "IDPattern must match %q", f.ItemID)
		assert.Equal(t, f.ItemID, f.Adapter.NormalizeID(f.ItemID))
	})

	t.Run("candidates include unstarted item", func(t *testing.T) {
		f := setup(t)
		items, err := f.Adapter.ListCandidates(ctx, types.Filter{UnstartedOnly: true})
		require.NoError(t, err)
		found := false
		for _, it := range items {
			assert.True(t, it.Status.Startable(), "candidate %s has status %s", it.ID, it.Status)
			if it.ID == f.ItemID {
				found = true
			}
		}
		assert.True(t, found, "candidates should include %s", f.ItemID)
	})

	t.Run("fetch", func(t *testing.T) {
		f := setup(t)
		item, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)
		assert.Equal(t, f.ItemID, item.ID)
		assert.NotEmpty(t, item.Key)
		assert.NotEmpty(t, item.Title)
		assert.NotEmpty(t, item.Kind)
		assert.Equal(t, types.StatusUnstarted, item.Status)
		require.Len(t, item.Tasks, 3)
		for i, task := range item.Tasks {
			assert.Equal(t, i+1, task.Number)
			assert.False(t, task.Done)
		}
		assert.NotEmpty(t, f.Adapter.RenderBranchSlug(item))
	})

	t.Run("fetch missing", func(t *testing.T) {
		f := setup(t)
		_, err := f.Adapter.Fetch(ctx, f.MissingID)
		assert.True(t, errors.Is(err, types.ErrNotFound), "got %v", err)
	})

	t.Run("check task 2", func(t *testing.T) {
		f := setup(t)
		item, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)

		updated, err := f.Adapter.SetTask(ctx, item, 2, true)
		require.NoError(t, err)
		require.Len(t, updated.Tasks, 3)
		assert.Equal(t, []bool{false, true, false}, doneFlags(updated.Tasks))

		again, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, false}, doneFlags(again.Tasks))
		for i := range item.Tasks {
			assert.Equal(t, item.Tasks[i].Description, again.Tasks[i].Description)
		}

		unchecked, err := f.Adapter.SetTask(ctx, again, 2, false)
		require.NoError(t, err)
		assert.Equal(t, []bool{false, false, false}, doneFlags(unchecked.Tasks))
	})

	t.Run("start then finish", func(t *testing.T) {
		f := setup(t)
		me, err := f.Adapter.CurrentUser(ctx)
		require.NoError(t, err)
		item, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)

		started, err := f.Adapter.SetStatus(ctx, item, types.StatusStarted)
		require.NoError(t, err)
		assert.Equal(t, types.StatusStarted, started.Status)

		fetched, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusStarted, fetched.Status)
		assert.True(t, fetched.AssignedTo(me), "start should claim the item for %s", me)

		finished, err := f.Adapter.SetStatus(ctx, fetched, types.StatusFinished)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFinished, finished.Status)
	})

	t.Run("comments", func(t *testing.T) {
		f := setup(t)
		item, err := f.Adapter.Fetch(ctx, f.ItemID)
		require.NoError(t, err)
		require.NoError(t, f.Adapter.AddComment(ctx, item, "hello from continuity"))
		comments, err := f.Adapter.Comments(ctx, item)
		require.NoError(t, err)
		require.NotEmpty(t, comments)
		assert.Equal(t, "hello from continuity", comments[len(comments)-1].Text)
	})

	t.Run("unauthorized", func(t *testing.T) {
		f := setup(t)
		f.Server.SetAuthError(true)
		_, err := f.Adapter.Fetch(ctx, f.ItemID)
		assert.True(t, errors.Is(err, types.ErrUnauthorized), "got %v", err)
	})

	t.Run("unreachable", func(t *testing.T) {
		f := setup(t)
		f.Server.SetServerError(true)
		_, err := f.Adapter.Fetch(ctx, f.ItemID)
		assert.True(t, errors.Is(err, types.ErrUnreachable), "got %v", err)
	})
}

func doneFlags(tasks []types.Task) []bool {
	out := make([]bool, len(tasks))
	for i, t := range tasks {
		out[i] = t.Done
	}
	return out
}

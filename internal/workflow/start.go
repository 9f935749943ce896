package workflow

import (
	"context"

	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/types"
)

// StartOptions configures Start.
type StartOptions struct {
	// Selector names the item to start. Empty picks the next candidate.
	Selector string
	// AssignedOnly restricts work to items assigned to the operator.
	// Nil uses the exclusive setting.
	AssignedOnly *bool
	// Ignore skips the assignment and status checks.
	Ignore bool
	// Force allows starting from a branch other than the integration branch.
	Force bool
}

// Start begins work on an item: it creates the item's branch from the
// current branch and marks the item started. The tracker is only updated
// once the branch exists.
func (e *Engine) Start(ctx context.Context, opts StartOptions) (*Report, error) {
	r := newReport("start")
	assignedOnly := e.Settings.Exclusive
	if opts.AssignedOnly != nil {
		assignedOnly = *opts.AssignedOnly
	}

	current, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return r, r.fail(StepCheckBranch, err)
	}
	r.Base = current
	if current != e.Settings.IntegrationBranch && !opts.Force {
		return r, r.fail(StepCheckBranch, types.NewOpError("start", current, types.ErrWrongBranch,
			"start from %s, or force", e.Settings.IntegrationBranch))
	}
	r.done(StepCheckBranch, "%s", current)

	item, err := e.selectItem(ctx, opts, assignedOnly)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	r.Item = item
	r.done(StepResolveItem, "%s %s", item.Key, item.Title)

	if opts.Selector != "" && assignedOnly && !opts.Ignore {
		me, err := e.currentUser(ctx)
		if err != nil {
			return r, r.fail(StepCheckAssignee, err)
		}
		if !item.AssignedTo(me) {
			return r, r.fail(StepCheckAssignee, types.NewOpError("start", item.Key, types.ErrNotAssigned,
				"assigned to %q", item.Assignee))
		}
		r.done(StepCheckAssignee, "%s", me)
	}

	if !item.Status.Startable() && !opts.Ignore {
		return r, r.fail(StepCheckStatus, types.NewOpError("start", item.Key, types.ErrConflict,
			"item is %s", item.Status))
	}
	r.done(StepCheckStatus, "%s", item.Status)

	if err := ctx.Err(); err != nil {
		return r, r.fail(StepCreateBranch, err)
	}
	branch := naming.BranchName(e.Settings.BranchTemplate(), item, e.Tracker.RenderBranchSlug(item))
	r.Branch = branch
	e.msg("Creating branch %s from %s", branch, current)
	if err := e.Git.CreateBranch(ctx, branch, current); err != nil {
		return r, r.fail(StepCreateBranch, err)
	}
	r.done(StepCreateBranch, "%s", branch)

	if err := e.Git.SetBranchBase(ctx, branch, current); err != nil {
		return r, r.fail(StepRecordBase, err)
	}
	r.done(StepRecordBase, "%s", current)

	if item.Status == types.StatusStarted {
		r.skip(StepSetStarted, "already started")
		return r, nil
	}
	e.msg("Marking %s started", item.Key)
	updated, err := e.Tracker.SetStatus(ctx, item, types.StatusStarted)
	if err != nil {
		return r, r.fail(StepSetStarted, err)
	}
	r.Item = updated
	r.done(StepSetStarted, "%s", updated.RawStatus)
	return r, nil
}

// selectItem fetches the selected item, or picks the first open candidate
// that is unassigned or assigned to the operator.
func (e *Engine) selectItem(ctx context.Context, opts StartOptions, assignedOnly bool) (*types.TrackerItem, error) {
	if opts.Selector != "" {
		return e.Tracker.Fetch(ctx, e.Tracker.NormalizeID(opts.Selector))
	}

	candidates, err := e.Tracker.ListCandidates(ctx, types.Filter{
		AssignedToCurrentUser: assignedOnly,
		UnstartedOnly:         !opts.Ignore,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, types.NewOpError("start", "", types.ErrNotFound, "no items available to start")
	}

	me, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		if !c.Assigned() || c.AssignedTo(me) {
			return c, nil
		}
	}
	return nil, types.NewOpError("start", "", types.ErrNotFound,
		"all %d candidates are assigned to someone else", len(candidates))
}

package workflow

import (
	"context"

	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/types"
)

// FinishOptions configures Finish.
type FinishOptions struct {
	// Branch is the work branch to merge into the current branch.
	Branch string
	// DeleteRemote also deletes the branch on the remote. The
	// delete-remote setting turns it on for every finish.
	DeleteRemote bool
	// MergeArgs are extra arguments for git merge.
	MergeArgs []string
}

// Finish merges a work branch into the branch it was started from,
// deletes it and marks its item finished. Nothing on the tracker changes
// unless the merge succeeds.
func (e *Engine) Finish(ctx context.Context, opts FinishOptions) (*Report, error) {
	r := newReport("finish")
	r.Branch = opts.Branch

	current, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return r, r.fail(StepCheckBranch, err)
	}
	if current == opts.Branch {
		return r, r.fail(StepCheckBranch, types.NewOpError("finish", opts.Branch, types.ErrWrongBranch,
			"check out the branch it merges into first"))
	}
	exists, err := e.Git.BranchExists(ctx, opts.Branch)
	if err != nil {
		return r, r.fail(StepCheckBranch, err)
	}
	if !exists {
		return r, r.fail(StepCheckBranch, types.NewOpError("finish", opts.Branch, types.ErrNotFound,
			"no such local branch"))
	}
	base, err := e.Git.BranchBase(ctx, opts.Branch)
	if err != nil {
		return r, r.fail(StepCheckBranch, err)
	}
	if base == "" {
		base = e.Settings.IntegrationBranch
	}
	r.Base = base
	if current != base {
		return r, r.fail(StepCheckBranch, types.NewOpError("finish", opts.Branch, types.ErrWrongBranch,
			"started from %s but %s is checked out", base, current))
	}
	r.done(StepCheckBranch, "%s into %s", opts.Branch, base)

	id, err := e.resolveBranch(opts.Branch)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	item, err := e.Tracker.Fetch(ctx, id)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	r.Item = item
	r.done(StepResolveItem, "%s %s", item.Key, item.Title)

	if err := ctx.Err(); err != nil {
		return r, r.fail(StepMerge, err)
	}
	e.msg("Merging %s into %s", opts.Branch, base)
	message := naming.MergeMessage(e.Settings.Templates.Merge, item)
	if err := e.Git.Merge(ctx, opts.Branch, message, opts.MergeArgs...); err != nil {
		return r, r.fail(StepMerge, err)
	}
	r.done(StepMerge, "%s", message)

	if err := e.Git.DeleteBranch(ctx, opts.Branch); err != nil {
		return r, r.fail(StepDeleteBranch, err)
	}
	r.done(StepDeleteBranch, "%s", opts.Branch)

	if opts.DeleteRemote || e.Settings.DeleteRemote {
		e.deleteRemote(ctx, r, opts.Branch)
	}

	if err := e.Git.ClearBranchBase(ctx, opts.Branch); err != nil {
		e.warn("Could not clear the base of %s: %v", opts.Branch, err)
		r.skip(StepClearBase, "%v", err)
	} else {
		r.done(StepClearBase, "%s", opts.Branch)
	}

	e.msg("Marking %s finished", item.Key)
	updated, err := e.Tracker.SetStatus(ctx, item, types.StatusFinished)
	if err != nil {
		return r, r.fail(StepSetFinished, err)
	}
	r.Item = updated
	r.done(StepSetFinished, "%s", updated.RawStatus)

	e.comment(ctx, r, updated, "Finished in "+base)
	return r, nil
}

// deleteRemote removes the work branch from the remote. The merge already
// happened, so failures are warnings and the item is still finished.
func (e *Engine) deleteRemote(ctx context.Context, r *Report, branch string) {
	remote := e.Settings.Remote
	deleted, err := e.Git.DeleteRemoteBranch(ctx, branch, remote)
	switch {
	case err != nil:
		e.warn("Could not delete %s on %s: %v", branch, remote, err)
		r.skip(StepDeleteRemote, "%v", err)
	case !deleted:
		r.skip(StepDeleteRemote, "%s/%s does not exist", remote, branch)
	default:
		r.done(StepDeleteRemote, "%s/%s", remote, branch)
	}
}

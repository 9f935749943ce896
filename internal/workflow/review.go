package workflow

import (
	"context"
	"errors"

	"github.com/jzempel/continuity/internal/codehost"
	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
)

// ReviewOptions configures Review. Empty Title and Body use the templates.
type ReviewOptions struct {
	Title string
	Body  string
	Draft bool
}

// Review pushes the current branch and opens, or refreshes, its pull
// request against the branch it was started from. Trackers with a review
// transition then move the item; a failed move is only a warning.
func (e *Engine) Review(ctx context.Context, opts ReviewOptions) (*Report, error) {
	r := newReport("review")

	branch, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	r.Branch = branch
	id, err := e.resolveBranch(branch)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	item, err := e.Tracker.Fetch(ctx, id)
	if err != nil {
		return r, r.fail(StepResolveItem, err)
	}
	r.Item = item
	r.done(StepResolveItem, "%s %s", item.Key, item.Title)
	e.warnNotStarted(item)

	if e.Host == nil {
		return r, r.fail(StepPullRequest, errors.New("no code host for this repository's remote"))
	}
	base, err := e.Git.BranchBase(ctx, branch)
	if err != nil {
		return r, r.fail(StepPullRequest, err)
	}
	if base == "" {
		base = e.Settings.IntegrationBranch
	}
	r.Base = base

	if err := ctx.Err(); err != nil {
		return r, r.fail(StepPush, err)
	}
	e.msg("Pushing %s to %s", branch, e.Settings.Remote)
	if err := e.Git.Push(ctx, branch, e.Settings.Remote); err != nil {
		return r, r.fail(StepPush, err)
	}
	r.done(StepPush, "%s/%s", e.Settings.Remote, branch)

	in := codehost.PullRequestInput{
		Head:  branch,
		Base:  base,
		Title: opts.Title,
		Body:  opts.Body,
		Draft: opts.Draft,
	}
	if in.Title == "" {
		in.Title = naming.PRTitle(e.Settings.Templates.PRTitle, item)
	}
	if in.Body == "" {
		in.Body = naming.PRBody(e.Settings.Templates.PRBody, item)
	}
	pr, created, err := e.Host.EnsurePullRequest(ctx, in)
	if err != nil {
		return r, r.fail(StepPullRequest, err)
	}
	r.PullRequest = pr
	if created {
		r.done(StepPullRequest, "opened %s", pr.URL)
	} else {
		r.done(StepPullRequest, "updated %s", pr.URL)
	}

	if rt, ok := e.Tracker.(tracker.ReviewTransitioner); ok {
		updated, moved, err := rt.TransitionForReview(ctx, item)
		switch {
		case err != nil:
			e.warn("Could not move %s to review: %v", item.Key, err)
			r.skip(StepReviewStatus, "%v", err)
		case moved:
			r.Item = updated
			item = updated
			r.done(StepReviewStatus, "%s", updated.RawStatus)
		}
	}

	if created {
		e.comment(ctx, r, item, "Review requested: "+pr.URL)
	}
	return r, nil
}

package workflow

import (
	"context"
	"errors"

	"github.com/jzempel/continuity/internal/types"
)

// TasksOptions configures Tasks. Both zero lists the tasks.
type TasksOptions struct {
	Check   int // 1-based task number to mark done
	Uncheck int // 1-based task number to mark not done
}

// Tasks lists, checks or unchecks the tasks of the current item.
func (e *Engine) Tasks(ctx context.Context, opts TasksOptions) (*Report, error) {
	r := newReport("tasks")
	if opts.Check != 0 && opts.Uncheck != 0 {
		return r, r.fail(StepUpdateTask, errors.New("check and uncheck are mutually exclusive"))
	}

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
	r.Tasks = item.Tasks
	r.done(StepResolveItem, "%s %s", item.Key, item.Title)
	e.warnNotStarted(item)

	index, done := opts.Check, true
	if opts.Uncheck != 0 {
		index, done = opts.Uncheck, false
	}
	if index == 0 {
		return r, nil
	}
	if index < 1 || index > len(item.Tasks) {
		return r, r.fail(StepUpdateTask, types.NewOpError("set task", item.Key, types.ErrTaskNotFound,
			"task %d of %d", index, len(item.Tasks)))
	}

	updated, err := e.Tracker.SetTask(ctx, item, index, done)
	if err != nil {
		return r, r.fail(StepUpdateTask, err)
	}
	r.Item = updated
	r.Tasks = updated.Tasks
	if done {
		r.done(StepUpdateTask, "checked %d", index)
	} else {
		r.done(StepUpdateTask, "unchecked %d", index)
	}
	return r, nil
}

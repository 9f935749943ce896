// Package workflow runs continuity's operations: it keeps a git branch and
// the tracker item it belongs to moving through the lifecycle together.
//
// The Engine owns no state besides its collaborators. Each operation checks
// its preconditions before touching anything, and returns a Report of the
// effects it had even when it fails part way.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jzempel/continuity/internal/codehost"
	"github.com/jzempel/continuity/internal/config"
	"github.com/jzempel/continuity/internal/naming"
	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

// Step names, as they appear in reports.
const (
	StepCheckBranch   = "check branch"
	StepResolveItem   = "resolve item"
	StepCheckAssignee = "check assignee"
	StepCheckStatus   = "check status"
	StepCreateBranch  = "create branch"
	StepRecordBase    = "record base"
	StepSetStarted    = "set started"
	StepPush          = "push"
	StepPullRequest   = "pull request"
	StepReviewStatus  = "review status"
	StepComment       = "comment"
	StepMerge         = "merge"
	StepDeleteBranch  = "delete branch"
	StepDeleteRemote  = "delete remote branch"
	StepClearBase     = "clear base"
	StepSetFinished   = "set finished"
	StepUpdateTask    = "update task"
	StepVerifyUser    = "verify credentials"
	StepSaveConfig    = "save config"
	StepInstallHook   = "install hook"
	StepSetAliases    = "set aliases"
)

// Git is the subset of the git facade the engine drives. *git.Repo
// satisfies it.
type Git interface {
	CurrentBranch(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name, base string) error
	Push(ctx context.Context, branch, remote string) error
	Merge(ctx context.Context, branch, message string, extra ...string) error
	DeleteBranch(ctx context.Context, name string) error
	DeleteRemoteBranch(ctx context.Context, name, remote string) (bool, error)
	BranchBase(ctx context.Context, branch string) (string, error)
	SetBranchBase(ctx context.Context, branch, base string) error
	ClearBranchBase(ctx context.Context, branch string) error
	InstallHook(ctx context.Context, name, script string) (string, error)
	SetAlias(ctx context.Context, name, command string) error
}

// CodeHost opens pull requests for review.
type CodeHost = codehost.Host

// ConfigWriter persists the configuration record written by Init.
type ConfigWriter interface {
	Write(values map[string]string, fresh bool) error
}

// Engine coordinates one tracker, one repository and an optional code host.
type Engine struct {
	Settings config.Settings
	Tracker  tracker.Adapter
	Git      Git
	Host     CodeHost

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)

	me *types.User
}

// NewEngine creates an engine. host may be nil when review is not used.
func NewEngine(settings config.Settings, adapter tracker.Adapter, g Git, host CodeHost) *Engine {
	return &Engine{
		Settings: settings,
		Tracker:  adapter,
		Git:      g,
		Host:     host,
	}
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

// currentUser looks the operator up once per engine.
func (e *Engine) currentUser(ctx context.Context) (*types.User, error) {
	if e.me != nil {
		return e.me, nil
	}
	me, err := e.Tracker.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	e.me = me
	return me, nil
}

// resolveBranch returns the item id bound to branch.
func (e *Engine) resolveBranch(branch string) (string, error) {
	id, err := naming.Resolve(e.Settings.BranchTemplate(), branch, e.Tracker.IDPattern())
	if err != nil {
		return "", err
	}
	return e.Tracker.NormalizeID(id), nil
}

// CurrentID returns the id of the item bound to the checked-out branch.
func (e *Engine) CurrentID(ctx context.Context) (string, error) {
	branch, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	return e.resolveBranch(branch)
}

// CurrentItem fetches the item bound to the checked-out branch.
func (e *Engine) CurrentItem(ctx context.Context) (*types.TrackerItem, error) {
	id, err := e.CurrentID(ctx)
	if err != nil {
		return nil, err
	}
	return e.Tracker.Fetch(ctx, id)
}

// PrepareCommitMessage applies the commit template for the current item
// to message. Branches that identify no item leave message unchanged.
func (e *Engine) PrepareCommitMessage(ctx context.Context, message string) (string, error) {
	branch, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		// detached HEAD, e.g. during a rebase
		return message, nil
	}
	id, err := e.resolveBranch(branch)
	if err != nil {
		if errors.Is(err, types.ErrUnresolvableBranch) {
			return message, nil
		}
		return message, err
	}
	item, err := e.Tracker.Fetch(ctx, id)
	if err != nil {
		return message, err
	}
	return naming.CommitMessage(e.Settings.Templates.Commit, item, message), nil
}

// warnNotStarted flags a work branch whose item the tracker does not
// show as started, e.g. after a start whose status update failed.
func (e *Engine) warnNotStarted(item *types.TrackerItem) {
	if item.Status != types.StatusStarted {
		e.warn("%s is %s on %s, not started", item.Key, item.Status, e.Tracker.DisplayName())
	}
}

// comment adds a best-effort note to item.
func (e *Engine) comment(ctx context.Context, r *Report, item *types.TrackerItem, text string) {
	if !e.Settings.Comments {
		r.skip(StepComment, "comments disabled")
		return
	}
	if err := e.Tracker.AddComment(ctx, item, text); err != nil {
		e.warn("Could not comment on %s: %v", item.Key, err)
		r.skip(StepComment, "%v", err)
		return
	}
	r.done(StepComment, "%s", text)
}

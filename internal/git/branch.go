package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// CurrentBranch returns the checked out branch. A detached HEAD is an
// error.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("current branch (detached HEAD?): %w", err)
	}
	return out, nil
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := r.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		if exitCode(err) == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Branches lists local branch names.
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CreateBranch creates name from base and checks it out. An existing
// branch is a Conflict and nothing is changed.
func (r *Repo) CreateBranch(ctx context.Context, name, base string) error {
	exists, err := r.BranchExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return types.NewOpError("create branch", name, types.ErrConflict, "branch already exists")
	}
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// Push publishes branch to remote and sets it as upstream.
func (r *Repo) Push(ctx context.Context, branch, remote string) error {
	if _, err := r.run(ctx, "push", "--set-upstream", remote, branch); err != nil {
		return fmt.Errorf("push %s to %s: %w", branch, remote, err)
	}
	return nil
}

// Merge merges branch into the current branch with a merge commit. extra
// is passed to git merge ahead of the branch. When git stops on conflicts
// the repository is left as git left it and a *types.MergeConflictError
// naming the conflicted paths is returned.
func (r *Repo) Merge(ctx context.Context, branch, message string, extra ...string) error {
	args := []string{"merge", "--no-ff"}
	if message != "" {
		args = append(args, "-m", message)
	} else {
		args = append(args, "--no-edit")
	}
	args = append(args, extra...)
	args = append(args, branch)
	_, mergeErr := r.run(ctx, args...)
	if mergeErr == nil {
		return nil
	}
	paths, err := r.ConflictedPaths(ctx)
	if err == nil && len(paths) > 0 {
		return &types.MergeConflictError{Branch: branch, Paths: paths}
	}
	return fmt.Errorf("merge %s: %w", branch, mergeErr)
}

// ConflictedPaths lists unmerged paths.
func (r *Repo) ConflictedPaths(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DeleteBranch deletes a merged local branch.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	if _, err := r.run(ctx, "branch", "-d", name); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

// DeleteRemoteBranch deletes branch name on remote. It reports false
// without error when remote has no such branch.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, name, remote string) (bool, error) {
	_, err := r.run(ctx, "push", remote, "--delete", name)
	if err == nil {
		return true, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "remote ref does not exist") {
		return false, nil
	}
	return false, fmt.Errorf("delete %s on %s: %w", name, remote, err)
}

func baseKey(branch string) string {
	return "branch." + branch + "." + BaseKey
}

// BranchBase returns the base recorded for branch, or "".
func (r *Repo) BranchBase(ctx context.Context, branch string) (string, error) {
	return r.GetConfig(ctx, baseKey(branch))
}

// SetBranchBase records the branch a work branch was started from.
func (r *Repo) SetBranchBase(ctx context.Context, branch, base string) error {
	return r.SetConfig(ctx, baseKey(branch), base)
}

// ClearBranchBase forgets the recorded base.
func (r *Repo) ClearBranchBase(ctx context.Context, branch string) error {
	return r.UnsetConfig(ctx, baseKey(branch))
}

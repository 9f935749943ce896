// Package git is the thin facade continuity uses to drive the git binary.
// Every operation is synchronous, reports git's stderr on failure and is
// never retried.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jzempel/continuity/internal/debug"
	"github.com/jzempel/continuity/internal/types"
)

// ExecutableEnv overrides the git binary.
const ExecutableEnv = "GIT_EXECUTABLE"

// BaseKey is the per-branch config key recording the branch a work branch
// was started from.
const BaseKey = "continuity-base"

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode returns git's exit status, or -1 when git did not run.
func (e *CommandError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func exitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode()
	}
	return -1
}

// Repo runs git inside one working tree.
type Repo struct {
	dir        string
	executable string
}

// Open returns a Repo rooted at dir; an empty dir means the working
// directory.
func Open(dir string) *Repo {
	exe := os.Getenv(ExecutableEnv)
	if exe == "" {
		exe = "git"
	}
	return &Repo{dir: dir, executable: exe}
}

// Dir returns the directory git runs in.
func (r *Repo) Dir() string { return r.dir }

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.executable, args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	debug.Logf("%s %s\n", r.executable, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.String(), &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, args...)
	return strings.TrimSpace(out), err
}

// Toplevel returns the root of the working tree.
func (r *Repo) Toplevel(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return out, nil
}

// HooksDir returns the directory git reads hooks from, honoring
// core.hooksPath.
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	out, err := r.output(ctx, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	if !filepath.IsAbs(out) {
		base := r.dir
		if base == "" {
			if base, err = os.Getwd(); err != nil {
				return "", err
			}
		}
		out = filepath.Join(base, out)
	}
	return out, nil
}

// HasUncommittedChanges reports staged, unstaged or untracked changes.
func (r *Repo) HasUncommittedChanges(ctx context.Context) (bool, error) {
	out, err := r.output(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// GetConfig returns a config value, or "" when the key is unset.
func (r *Repo) GetConfig(ctx context.Context, key string) (string, error) {
	out, err := r.output(ctx, "config", "--get", key)
	if err != nil {
		if exitCode(err) == 1 {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// SetConfig writes a repository-local config value.
func (r *Repo) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.run(ctx, "config", "--local", key, value)
	return err
}

// UnsetConfig removes a repository-local config value. Unset keys are
// not an error.
func (r *Repo) UnsetConfig(ctx context.Context, key string) error {
	_, err := r.run(ctx, "config", "--local", "--unset", key)
	if err != nil && exitCode(err) == 5 {
		return nil
	}
	return err
}

// RemoteURL returns the fetch URL of remote.
func (r *Repo) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.output(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", types.NewOpError("remote", remote, types.ErrNotFound, "%v", err)
	}
	return out, nil
}

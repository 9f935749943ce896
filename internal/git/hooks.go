package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PrepareCommitMsgHook is the hook continuity installs.
const PrepareCommitMsgHook = "prepare-commit-msg"

// HookScript returns the shell hook that hands the message file to
// command.
func HookScript(command string) string {
	return fmt.Sprintf("#!/bin/sh\n\n%s commit \"$@\"\n", command)
}

// InstallHook writes an executable hook. An existing different hook is
// moved aside to <name>.bak, whose path is returned.
func (r *Repo) InstallHook(ctx context.Context, name, script string) (string, error) {
	dir, err := r.HooksDir(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create hooks dir: %w", err)
	}
	path := filepath.Join(dir, name)

	var backup string
	existing, err := os.ReadFile(path) // #nosec G304 - path is under the git hooks dir
	switch {
	case err == nil && bytes.Equal(existing, []byte(script)):
		return "", os.Chmod(path, 0o755) // #nosec G302 - hooks must be executable
	case err == nil:
		backup = path + ".bak"
		if err := os.Rename(path, backup); err != nil {
			return "", fmt.Errorf("back up %s hook: %w", name, err)
		}
	case !os.IsNotExist(err):
		return "", fmt.Errorf("read %s hook: %w", name, err)
	}

	// #nosec G306 - hooks must be executable
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return backup, fmt.Errorf("write %s hook: %w", name, err)
	}
	return backup, nil
}

// SetAlias makes "git <name>" run command through the shell.
func (r *Repo) SetAlias(ctx context.Context, name, command string) error {
	return r.SetConfig(ctx, "alias."+name, "!"+command)
}

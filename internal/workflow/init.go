package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jzempel/continuity/internal/git"
)

// InitOptions configures Init.
type InitOptions struct {
	// Values is the configuration record, as dotted keys.
	Values map[string]string
	// New discards previously stored values.
	New bool
	// Writer persists Values.
	Writer ConfigWriter
	// Executable is the command the hook and aliases run.
	Executable string
	// Aliases are the commands to expose as git aliases, e.g. "start".
	Aliases []string
}

// Init verifies the tracker credentials, stores the configuration and
// installs the commit hook and git aliases. The Engine's Tracker must
// already be initialized from Values.
func (e *Engine) Init(ctx context.Context, opts InitOptions) (*Report, error) {
	r := newReport("init")
	if opts.Writer == nil {
		return r, r.fail(StepSaveConfig, errors.New("no config writer"))
	}

	me, err := e.currentUser(ctx)
	if err != nil {
		return r, r.fail(StepVerifyUser, err)
	}
	r.done(StepVerifyUser, "authenticated to %s as %s", e.Tracker.DisplayName(), me)

	if err := opts.Writer.Write(opts.Values, opts.New); err != nil {
		return r, r.fail(StepSaveConfig, err)
	}
	r.done(StepSaveConfig, "%d values", len(opts.Values))

	exe := opts.Executable
	if exe == "" {
		exe = "continuity"
	}
	backup, err := e.Git.InstallHook(ctx, git.PrepareCommitMsgHook, git.HookScript(exe))
	if err != nil {
		return r, r.fail(StepInstallHook, err)
	}
	if backup != "" {
		e.warn("Existing %s hook moved to %s", git.PrepareCommitMsgHook, backup)
		r.done(StepInstallHook, "%s (previous hook saved as %s)", git.PrepareCommitMsgHook, backup)
	} else {
		r.done(StepInstallHook, "%s", git.PrepareCommitMsgHook)
	}

	if len(opts.Aliases) == 0 {
		r.skip(StepSetAliases, "none requested")
		return r, nil
	}
	for _, name := range opts.Aliases {
		if err := e.Git.SetAlias(ctx, name, fmt.Sprintf("%s %s", exe, name)); err != nil {
			return r, r.fail(StepSetAliases, err)
		}
	}
	r.done(StepSetAliases, "%s", strings.Join(opts.Aliases, ", "))
	return r, nil
}

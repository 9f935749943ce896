package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jzempel/continuity/internal/types"
	"github.com/jzempel/continuity/internal/ui"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for failures outside the tracker/git error taxonomy, such as
// form or flag validation.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exit(types.ExitGeneric, fmt.Errorf(format, args...))
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("no tracker configured", "Run 'continuity init'")
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	exit(types.ExitGeneric, errors.New(message))
}

// WarnError writes a warning message to stderr and returns.
// Use this for best-effort steps such as tracker comments.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, formatWarning(fmt.Sprintf(format, args...)))
}

func formatWarning(msg string) string {
	return ui.RenderWarnIcon() + " " + ui.RenderWarn("Warning: "+msg)
}

// fatal reports err and exits with the code for its class. With --json
// the error is written as an object instead.
func fatal(err error) {
	code := types.ExitCode(err)
	if code == types.ExitOK {
		code = types.ExitGeneric
	}
	if jsonOutput {
		outputJSONError(err, types.ErrorCode(err), code)
	}

	message, detail, _ := strings.Cut(err.Error(), "\n")
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	if detail != "" {
		fmt.Fprintln(os.Stderr, detail)
	}
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	exit(code, err)
}

// exit closes the command span with err, flushes telemetry and exits.
// Every early exit goes through here since os.Exit skips
// PersistentPostRun.
func exit(code int, err error) {
	endCommand(err)
	os.Exit(code)
}

// hintFor suggests the next step for the common error classes.
func hintFor(err error) string {
	var mc *types.MergeConflictError
	switch {
	case errors.As(err, &mc):
		return "Resolve the conflicts, commit, then run 'continuity finish " + mc.Branch + "' again"
	case errors.Is(err, types.ErrUnauthorized):
		return "Check your credentials with 'continuity init'"
	case errors.Is(err, types.ErrUnreachable):
		return "Check your network connection and the tracker URL"
	case errors.Is(err, types.ErrWrongBranch):
		return "Check out the branch the work merges into"
	case errors.Is(err, types.ErrNotAssigned):
		return "Pass --ignore to start it anyway"
	case errors.Is(err, types.ErrUnresolvableBranch):
		return "Check out a branch created by 'continuity start'"
	case errors.Is(err, types.ErrTaskNotFound):
		return "Run 'continuity tasks' to list task numbers"
	}
	return ""
}

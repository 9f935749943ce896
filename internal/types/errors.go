package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every failure surfaced by an operation unwraps to one of
// these so callers can branch with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnreachable        = errors.New("backend unreachable")
	ErrConflict           = errors.New("conflict")
	ErrWrongBranch        = errors.New("wrong branch")
	ErrNotAssigned        = errors.New("not assigned to you")
	ErrMergeConflict      = errors.New("merge conflict")
	ErrUnresolvableBranch = errors.New("branch does not identify a tracker item")
	ErrTaskNotFound       = errors.New("task not found")
)

// Exit codes reported by the CLI.
const (
	ExitOK                 = 0
	ExitGeneric            = 1
	ExitUsage              = 2
	ExitNotFound           = 3
	ExitUnauthorized       = 4
	ExitUnreachable        = 5
	ExitConflict           = 6
	ExitWrongBranch        = 7
	ExitNotAssigned        = 8
	ExitMergeConflict      = 9
	ExitUnresolvableBranch = 10
	ExitTaskNotFound       = 11
)

var exitCodes = []struct {
	err  error
	code int
	name string
}{
	{ErrNotFound, ExitNotFound, "not_found"},
	{ErrUnauthorized, ExitUnauthorized, "unauthorized"},
	{ErrUnreachable, ExitUnreachable, "unreachable"},
	{ErrConflict, ExitConflict, "conflict"},
	{ErrWrongBranch, ExitWrongBranch, "wrong_branch"},
	{ErrNotAssigned, ExitNotAssigned, "not_assigned"},
	{ErrMergeConflict, ExitMergeConflict, "merge_conflict"},
	{ErrUnresolvableBranch, ExitUnresolvableBranch, "unresolvable_branch"},
	{ErrTaskNotFound, ExitTaskNotFound, "task_not_found"},
}

// ExitCode maps an error to the process exit code for its class.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ExitGeneric
}

// ErrorCode returns a stable machine-readable name for the error class,
// or "error" when the class is unknown.
func ErrorCode(err error) string {
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.name
		}
	}
	return "error"
}

// OpError records the operation and identifier that failed.
type OpError struct {
	Op     string // e.g. "fetch", "set status", "create branch"
	Ref    string // item id or branch name
	Detail string
	Err    error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Ref != "" {
		b.WriteString(" ")
		b.WriteString(e.Ref)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError builds an OpError from a class sentinel.
func NewOpError(op, ref string, err error, detailFormat string, args ...interface{}) *OpError {
	detail := detailFormat
	if len(args) > 0 {
		detail = fmt.Sprintf(detailFormat, args...)
	}
	return &OpError{Op: op, Ref: ref, Detail: detail, Err: err}
}

// MergeConflictError lists the paths left unmerged by a failed merge.
type MergeConflictError struct {
	Branch string
	Paths  []string
}

func (e *MergeConflictError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("merge %s: %v", e.Branch, ErrMergeConflict)
	}
	return fmt.Sprintf("merge %s: %v in %s", e.Branch, ErrMergeConflict, strings.Join(e.Paths, ", "))
}

func (e *MergeConflictError) Unwrap() error {
	return ErrMergeConflict
}

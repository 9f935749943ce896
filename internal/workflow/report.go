package workflow

import (
	"fmt"

	"github.com/jzempel/continuity/internal/codehost"
	"github.com/jzempel/continuity/internal/types"
)

// StepState is the outcome of one step of an operation.
type StepState string

const (
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
	StepSkipped StepState = "skipped"
)

// Step is one observable effect of an operation.
type Step struct {
	Name   string    `json:"name"`
	State  StepState `json:"state"`
	Detail string    `json:"detail,omitempty"`
	Err    error     `json:"-"`
}

// Report lists the steps an operation attempted, in order. A failed
// operation still returns its report so callers can tell, for example, a
// created branch from an updated tracker.
type Report struct {
	Op          string                `json:"op"`
	Item        *types.TrackerItem    `json:"item,omitempty"`
	Branch      string                `json:"branch,omitempty"`
	Base        string                `json:"base,omitempty"`
	PullRequest *codehost.PullRequest `json:"pull_request,omitempty"`
	Tasks       []types.Task          `json:"tasks,omitempty"`
	Steps       []Step                `json:"steps"`
}

func newReport(op string) *Report {
	return &Report{Op: op, Steps: []Step{}}
}

// Failed returns the failed step, or nil.
func (r *Report) Failed() *Step {
	for i := range r.Steps {
		if r.Steps[i].State == StepFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Step returns the named step, or nil when it was never reached.
func (r *Report) Step(name string) *Step {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Done reports whether the named step completed.
func (r *Report) Done(name string) bool {
	s := r.Step(name)
	return s != nil && s.State == StepDone
}

func (r *Report) done(name, format string, args ...interface{}) {
	r.Steps = append(r.Steps, Step{Name: name, State: StepDone, Detail: fmt.Sprintf(format, args...)})
}

func (r *Report) skip(name, format string, args ...interface{}) {
	r.Steps = append(r.Steps, Step{Name: name, State: StepSkipped, Detail: fmt.Sprintf(format, args...)})
}

// fail records the failure and hands err back for returning.
func (r *Report) fail(name string, err error) error {
	r.Steps = append(r.Steps, Step{Name: name, State: StepFailed, Detail: err.Error(), Err: err})
	return err
}

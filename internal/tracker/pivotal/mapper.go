package pivotal

import (
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// Story states.
const (
	StateUnscheduled = "unscheduled"
	StateUnstarted   = "unstarted"
	StatePlanned     = "planned"
	StateStarted     = "started"
	StateFinished    = "finished"
	StateDelivered   = "delivered"
	StateAccepted    = "accepted"
	StateRejected    = "rejected"
)

// Story types that can be worked on. Releases are markers, not work.
var workableTypes = map[string]bool{
	"feature": true,
	"bug":     true,
	"chore":   true,
}

// statusMapper maps story states to normalized statuses.
type statusMapper struct{}

// StatusFromTracker implements tracker.StatusMapper.
func (statusMapper) StatusFromTracker(native interface{}) types.Status {
	state, _ := native.(string)
	switch strings.ToLower(state) {
	case StateUnscheduled, StateUnstarted, StatePlanned:
		return types.StatusUnstarted
	case StateStarted:
		return types.StatusStarted
	case StateFinished, StateDelivered, StateAccepted:
		return types.StatusFinished
	case StateRejected:
		return types.StatusRejected
	default:
		return types.StatusOther
	}
}

// stateForStatus returns the story state to write for a target status.
func stateForStatus(s types.Status) (string, bool) {
	switch s {
	case types.StatusUnstarted:
		return StateUnstarted, true
	case types.StatusStarted:
		return StateStarted, true
	case types.StatusFinished:
		return StateFinished, true
	case types.StatusRejected:
		return StateRejected, true
	}
	return "", false
}

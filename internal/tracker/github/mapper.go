package github

import (
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// Default workflow labels.
const (
	DefaultStartedLabel  = "started"
	DefaultFinishedLabel = "finished"
)

// issueState is the part of an issue that determines its status.
type issueState struct {
	State  string // "open" or "closed"
	Labels []string
}

// statusMapper derives status from issue state and workflow labels.
type statusMapper struct {
	started  string
	finished string
}

func newStatusMapper(started, finished string) statusMapper {
	if started == "" {
		started = DefaultStartedLabel
	}
	if finished == "" {
		finished = DefaultFinishedLabel
	}
	return statusMapper{started: started, finished: finished}
}

// StatusFromTracker implements tracker.StatusMapper for issueState values.
func (m statusMapper) StatusFromTracker(native interface{}) types.Status {
	st, ok := native.(issueState)
	if !ok {
		return types.StatusOther
	}
	has := func(name string) bool {
		for _, l := range st.Labels {
			if strings.EqualFold(l, name) {
				return true
			}
		}
		return false
	}
	switch strings.ToLower(st.State) {
	case "closed":
		return types.StatusFinished
	case "open":
		switch {
		case has(m.finished):
			return types.StatusFinished
		case has(m.started):
			return types.StatusStarted
		}
		return types.StatusUnstarted
	default:
		return types.StatusOther
	}
}

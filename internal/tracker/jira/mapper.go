package jira

import (
	"strings"

	"github.com/jzempel/continuity/internal/types"
)

// Status category keys.
const (
	CategoryNew           = "new"
	CategoryIndeterminate = "indeterminate"
	CategoryDone          = "done"
	CategoryUndefined     = "undefined"
)

// statusMapper maps Jira status categories to normalized statuses.
type statusMapper struct{}

// StatusFromTracker accepts a category key or a *StatusField.
func (statusMapper) StatusFromTracker(native interface{}) types.Status {
	var key string
	switch v := native.(type) {
	case string:
		key = v
	case *StatusField:
		if v != nil && v.StatusCategory != nil {
			key = v.StatusCategory.Key
		}
	}
	switch strings.ToLower(key) {
	case CategoryNew:
		return types.StatusUnstarted
	case CategoryIndeterminate:
		return types.StatusStarted
	case CategoryDone:
		return types.StatusFinished
	default:
		return types.StatusOther
	}
}

// categoryForStatus returns the category a transition must land in.
func categoryForStatus(s types.Status) (string, bool) {
	switch s {
	case types.StatusUnstarted, types.StatusRejected:
		return CategoryNew, true
	case types.StatusStarted:
		return CategoryIndeterminate, true
	case types.StatusFinished:
		return CategoryDone, true
	}
	return "", false
}

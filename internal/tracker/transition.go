package tracker

import (
	"github.com/jzempel/continuity/internal/types"
)

// CheckTransition reports a types.ErrConflict when moving from one status
// to another would go backwards. Re-applying the current status is allowed,
// as is restarting a rejected item. Items in an unmapped status are left
// for the backend to judge.
func CheckTransition(ref string, from, to types.Status) error {
	if from == to || from == types.StatusOther || to == types.StatusOther {
		return nil
	}
	if from == types.StatusRejected && to == types.StatusStarted {
		return nil
	}
	if to.Rank() > from.Rank() {
		return nil
	}
	return types.NewOpError("set status", ref, types.ErrConflict,
		"cannot move from %s to %s", from, to)
}

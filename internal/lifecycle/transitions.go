package lifecycle

import (
	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
)

// transitions lists the statuses reachable from each status. Closed is terminal.
var transitions = map[model.AlertStatus][]model.AlertStatus{
	model.AlertOpen:       {model.AlertAssigned, model.AlertInProgress, model.AlertResolved, model.AlertClosed},
	model.AlertAssigned:   {model.AlertInProgress, model.AlertResolved, model.AlertClosed},
	model.AlertInProgress: {model.AlertResolved, model.AlertClosed},
	model.AlertResolved:   {model.AlertClosed},
	model.AlertClosed:     {},
}

// CanTransition reports whether from -> to is a declared forward transition.
// Staying on the same status is not a transition.
func CanTransition(from, to model.AlertStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to model.AlertStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if from == model.AlertClosed {
		return apperr.InvalidTransition("alert is closed and cannot move to %s", to)
	}
	return apperr.InvalidTransition("cannot move alert from %s to %s", from, to)
}

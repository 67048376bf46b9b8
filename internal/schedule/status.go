package schedule

import "fmt"

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled, StatusPending},
}

// CanTransition reports whether from -> to is a regular lifecycle step.
// Completed, cancelled and no_show are terminal.
func CanTransition(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a status change. Administrators may force any
// change, including out of a terminal state.
func CheckTransition(caller CallerContext, from, to AppointmentStatus, force bool) error {
	if !to.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	if force && caller.IsAdmin {
		return nil
	}
	if force {
		return ErrForbidden
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

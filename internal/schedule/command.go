package schedule

import (
	"fmt"

	"github.com/google/uuid"
)

type CommandKind string

const (
	KindCreate CommandKind = "create"
	KindMove   CommandKind = "move"
	KindResize CommandKind = "resize"
	KindEdit   CommandKind = "edit"
	KindDelete CommandKind = "delete"
)

// Command is an interactive calendar mutation. Before is the zero value for
// creations.
type Command struct {
	Kind   CommandKind
	Before Appointment
	After  Appointment
}

// ClassifyChange derives the command kind for an update of before into after.
func ClassifyChange(before, after Appointment) CommandKind {
	if before.Start.Equal(after.Start) && before.End.Equal(after.End) {
		if sameRoom(before.RoomID, after.RoomID) && sameIDSet(before.ProfessionalIDs, after.ProfessionalIDs) {
			return KindEdit
		}
		return KindMove
	}
	if before.End.Sub(before.Start) == after.End.Sub(after.Start) {
		return KindMove
	}
	return KindResize
}

// Authorize applies the permission rule. Administrators may do anything.
// Other staff may only move, resize or edit appointments they are assigned
// to, must stay assigned afterwards, and may never create or delete.
func Authorize(caller CallerContext, cmd Command) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.OwnProfessionalID == nil {
		return ErrForbidden
	}
	own := *caller.OwnProfessionalID
	switch cmd.Kind {
	case KindMove, KindResize, KindEdit:
		if cmd.Before.HasProfessional(own) && cmd.After.HasProfessional(own) {
			return nil
		}
	}
	return ErrForbidden
}

// Validate authorizes the command and, for anything that places time on the
// calendar, runs the conflict detector against existing. The permission
// check comes first so an unauthorised caller learns nothing about the
// target slot.
func Validate(caller CallerContext, cmd Command, existing []Appointment) error {
	if err := Authorize(caller, cmd); err != nil {
		return err
	}
	switch cmd.Kind {
	case KindDelete:
		return nil
	case KindEdit:
		if cmd.Before.Status == StatusCancelled && cmd.After.Status != StatusCancelled {
			return CheckConflict(PlacementOf(cmd.After), existing)
		}
		return nil
	case KindCreate:
		if err := ValidateNew(cmd.After); err != nil {
			return err
		}
		return CheckConflict(Placement{
			Start:           cmd.After.Start,
			End:             cmd.After.End,
			RoomID:          cmd.After.RoomID,
			ProfessionalIDs: cmd.After.ProfessionalIDs,
		}, existing)
	default:
		if cmd.After.Status == StatusCancelled {
			return nil
		}
		return CheckConflict(PlacementOf(cmd.After), existing)
	}
}

// ValidateNew checks the fields a booking needs before any conflict check.
func ValidateNew(a Appointment) error {
	switch {
	case a.PatientID == uuid.Nil:
		return invalid("patient_id", "is required")
	case a.ServiceID == uuid.Nil:
		return invalid("service_id", "is required")
	case a.Start.IsZero() || a.End.IsZero():
		return invalid("start", "start and end are required")
	case !a.End.After(a.Start):
		return invalid("end", "must be after start")
	}
	if a.Status != "" && !a.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", a.Status))
	}
	return nil
}

func sameIDSet(a, b []uuid.UUID) bool {
	a, b = dedupIDs(a), dedupIDs(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

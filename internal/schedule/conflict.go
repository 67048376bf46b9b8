package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Placement is the resource footprint a booking wants to occupy.
type Placement struct {
	Start           time.Time
	End             time.Time
	RoomID          *uuid.UUID
	ProfessionalIDs []uuid.UUID
	// Ignore skips an existing booking, used when moving an appointment
	// over its own previous position.
	Ignore *uuid.UUID
}

func PlacementOf(a Appointment) Placement {
	id := a.ID
	return Placement{
		Start:           a.Start,
		End:             a.End,
		RoomID:          a.RoomID,
		ProfessionalIDs: a.ProfessionalIDs,
		Ignore:          &id,
	}
}

// CheckConflict returns nil when the placement is admissible against
// existing, or a *ConflictError otherwise. Cancelled bookings never block.
// An unassigned room is not a shared resource.
func CheckConflict(p Placement, existing []Appointment) error {
	if IntersectsBlackout(p.Start, p.End) {
		return &ConflictError{Reason: ReasonBlackout}
	}
	if p.End.Sub(p.Start) < MinDuration {
		return &ConflictError{Reason: ReasonTooShort}
	}

	want := Interval{Start: p.Start, End: p.End}
	for _, a := range existing {
		if a.Status == StatusCancelled {
			continue
		}
		if p.Ignore != nil && a.ID == *p.Ignore {
			continue
		}
		if !sharesResource(p, a) {
			continue
		}
		if a.Interval().Overlaps(want) {
			id := a.ID
			return &ConflictError{Reason: ReasonOverlap, With: &id}
		}
	}
	return nil
}

func sharesResource(p Placement, a Appointment) bool {
	if p.RoomID != nil && a.RoomID != nil && *p.RoomID == *a.RoomID {
		return true
	}
	for _, id := range p.ProfessionalIDs {
		if a.HasProfessional(id) {
			return true
		}
	}
	return false
}

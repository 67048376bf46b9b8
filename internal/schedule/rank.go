package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Ranker picks the advisory default professional(s) among the candidates
// qualified for a service on a given day. The final choice is always made
// explicitly through the professional selector.
type Ranker interface {
	Defaults(day time.Time, candidates []Professional, dayBookings []Appointment) []uuid.UUID
}

// RankerFunc adapts a plain function to Ranker.
type RankerFunc func(day time.Time, candidates []Professional, dayBookings []Appointment) []uuid.UUID

func (f RankerFunc) Defaults(day time.Time, candidates []Professional, dayBookings []Appointment) []uuid.UUID {
	return f(day, candidates, dayBookings)
}

// LeastLoaded prefers the professional with the fewest non-cancelled
// bookings that day. Ties go to the lower id.
type LeastLoaded struct{}

func (LeastLoaded) Defaults(_ time.Time, candidates []Professional, dayBookings []Appointment) []uuid.UUID {
	if len(candidates) == 0 {
		return nil
	}

	load := make(map[uuid.UUID]int, len(candidates))
	for _, a := range dayBookings {
		if a.Status == StatusCancelled {
			continue
		}
		for _, id := range a.ProfessionalIDs {
			load[id]++
		}
	}

	sorted := append([]Professional(nil), candidates...)
	sortProfessionals(sorted)

	best := sorted[0]
	for _, p := range sorted[1:] {
		if load[p.ID] < load[best.ID] {
			best = p
		}
	}
	return []uuid.UUID{best.ID}
}

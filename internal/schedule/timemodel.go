package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MinDuration is the shortest bookable interval.
const MinDuration = 5 * time.Minute

// The lunch break is fixed for every clinic day.
const (
	blackoutStartHour = 13
	blackoutEndHour   = 14
)

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// BlackoutWindow returns the lunch break of the day containing t, in t's
// location.
func BlackoutWindow(t time.Time) Interval {
	y, m, d := t.Date()
	loc := t.Location()
	return Interval{
		Start: time.Date(y, m, d, blackoutStartHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, blackoutEndHour, 0, 0, 0, loc),
	}
}

// IntersectsBlackout reports whether [start, end) touches the lunch break of
// start's day. Intervals spanning midnight are checked against both days.
func IntersectsBlackout(start, end time.Time) bool {
	for day := startOfDay(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		if (Interval{Start: start, End: end}).Overlaps(BlackoutWindow(day)) {
			return true
		}
	}
	return false
}

// InBlackout is the point-in-time variant of IntersectsBlackout.
func InBlackout(t time.Time) bool {
	w := BlackoutWindow(t)
	return !t.Before(w.Start) && t.Before(w.End)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
}

func lessID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortProfessionals(ps []Professional) {
	sort.Slice(ps, func(i, j int) bool { return lessID(ps[i].ID, ps[j].ID) })
}

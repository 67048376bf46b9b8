package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// UnassignedRoom is the column shown for bookings without a room.
var UnassignedRoom = Room{ID: uuid.Nil, Name: "Unassigned"}

// VisibleRooms returns the rooms holding at least one non-cancelled booking,
// sorted by id with the unassigned column last. An empty result falls back
// to the full catalog.
func VisibleRooms(bookings []Appointment, catalog []Room) []Room {
	out := bookedRooms(bookings, catalog)
	if len(out) == 0 {
		return allRooms(catalog)
	}
	return out
}

func bookedRooms(bookings []Appointment, catalog []Room) []Room {
	byID := make(map[uuid.UUID]Room, len(catalog))
	for _, r := range catalog {
		byID[r.ID] = r
	}

	used := make(map[uuid.UUID]struct{})
	unassigned := false
	for _, a := range bookings {
		if a.Status == StatusCancelled {
			continue
		}
		if a.RoomID == nil {
			unassigned = true
			continue
		}
		used[*a.RoomID] = struct{}{}
	}

	out := make([]Room, 0, len(used)+1)
	for id := range used {
		r, ok := byID[id]
		if !ok {
			r = Room{ID: id}
		}
		out = append(out, r)
	}
	sortRooms(out)
	if unassigned {
		out = append(out, UnassignedRoom)
	}
	return out
}

// VisibleProfessionals applies the same rule to staff columns.
func VisibleProfessionals(bookings []Appointment, catalog []Professional) []Professional {
	byID := make(map[uuid.UUID]Professional, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	used := make(map[uuid.UUID]struct{})
	for _, a := range bookings {
		if a.Status == StatusCancelled {
			continue
		}
		for _, id := range a.ProfessionalIDs {
			used[id] = struct{}{}
		}
	}

	out := make([]Professional, 0, len(used))
	for id := range used {
		p, ok := byID[id]
		if !ok {
			p = Professional{ID: id}
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, catalog...)
	}
	sortProfessionals(out)
	return out
}

func allRooms(catalog []Room) []Room {
	out := append([]Room(nil), catalog...)
	sortRooms(out)
	return out
}

func sortRooms(rs []Room) {
	sort.Slice(rs, func(i, j int) bool { return lessID(rs[i].ID, rs[j].ID) })
}

// RoomFilter remembers a manual "show all rooms" choice for the viewed day.
// The empty-day fallback only applies while no manual choice is active, and
// the choice is dropped when the viewed date changes.
type RoomFilter struct {
	date    time.Time
	manual  bool
	showAll bool
}

func NewRoomFilter(date time.Time) *RoomFilter {
	return &RoomFilter{date: startOfDay(date)}
}

func (f *RoomFilter) SetDate(date time.Time) {
	d := startOfDay(date)
	if d.Equal(f.date) {
		return
	}
	f.date = d
	f.manual = false
	f.showAll = false
}

func (f *RoomFilter) SetShowAll(showAll bool) {
	f.manual = true
	f.showAll = showAll
}

func (f *RoomFilter) Manual() bool {
	return f.manual
}

func (f *RoomFilter) Rooms(bookings []Appointment, catalog []Room) []Room {
	if !f.manual {
		return VisibleRooms(bookings, catalog)
	}
	if f.showAll {
		return allRooms(catalog)
	}
	return bookedRooms(bookings, catalog)
}

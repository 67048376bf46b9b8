package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func roomIDs(rs []Room) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID.String())
	}
	return out
}

func TestVisibleRooms_OnlyBookedSortedUnassignedLast(t *testing.T) {
	catalog := []Room{
		{ID: testID(3), Name: "Sala 3"},
		{ID: testID(1), Name: "Sala 1"},
		{ID: testID(2), Name: "Sala 2"},
	}
	bookings := []Appointment{
		appt(100, at(0, 9, 0), at(0, 10, 0), ptrID(testID(3))),
		appt(101, at(0, 10, 0), at(0, 11, 0), nil),
		appt(102, at(0, 11, 0), at(0, 12, 0), ptrID(testID(1))),
	}

	got := VisibleRooms(bookings, catalog)

	assert.Equal(t, []string{testID(1).String(), testID(3).String(), UnassignedRoom.ID.String()}, roomIDs(got))
	assert.Equal(t, "Sala 1", got[0].Name)
}

func TestVisibleRooms_EmptyDayFallsBackToCatalog(t *testing.T) {
	catalog := []Room{{ID: testID(2)}, {ID: testID(1)}}

	got := VisibleRooms(nil, catalog)
	assert.Equal(t, []string{testID(1).String(), testID(2).String()}, roomIDs(got))

	cancelled := appt(100, at(0, 9, 0), at(0, 10, 0), ptrID(testID(2)))
	cancelled.Status = StatusCancelled
	got = VisibleRooms([]Appointment{cancelled}, catalog)
	assert.Len(t, got, 2)
}

func TestVisibleProfessionals(t *testing.T) {
	catalog := []Professional{{ID: testID(12), Name: "B"}, {ID: testID(11), Name: "A"}, {ID: testID(13)}}
	bookings := []Appointment{appt(100, at(0, 9, 0), at(0, 10, 0), nil, testID(12), testID(11))}

	got := VisibleProfessionals(bookings, catalog)
	assert.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)

	assert.Len(t, VisibleProfessionals(nil, catalog), 3)
}

func TestRoomFilter_ManualOverrideSurvivesUntilDateChanges(t *testing.T) {
	catalog := []Room{{ID: testID(1)}, {ID: testID(2)}}
	bookings := []Appointment{appt(100, at(0, 9, 0), at(0, 10, 0), ptrID(testID(2)))}

	f := NewRoomFilter(at(0, 0, 0))
	assert.Len(t, f.Rooms(bookings, catalog), 1)

	f.SetShowAll(true)
	assert.Len(t, f.Rooms(bookings, catalog), 2)

	// Manually hiding empty rooms on an empty day yields an empty grid.
	f.SetShowAll(false)
	assert.Empty(t, f.Rooms(nil, catalog))

	f.SetDate(at(0, 15, 0))
	assert.True(t, f.Manual(), "same day keeps the manual choice")

	f.SetDate(at(1, 0, 0))
	assert.False(t, f.Manual())
	assert.Len(t, f.Rooms(nil, catalog), 2)
}

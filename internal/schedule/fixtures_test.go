package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func ptrID(id uuid.UUID) *uuid.UUID {
	return &id
}

// monday is 2026-03-02, a Monday.
func at(dayOffset, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+dayOffset, hour, minute, 0, 0, time.UTC)
}

func appt(id int, start, end time.Time, room *uuid.UUID, pros ...uuid.UUID) Appointment {
	return Appointment{
		ID:              testID(id),
		PatientID:       testID(900),
		ServiceID:       testID(500),
		RoomID:          room,
		ProfessionalIDs: pros,
		Start:           start,
		End:             end,
		Status:          StatusConfirmed,
	}
}

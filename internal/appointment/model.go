package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type DraftStatus string

const (
	DraftPending   DraftStatus = "pending"
	DraftConfirmed DraftStatus = "confirmed"
	DraftCancelled DraftStatus = "cancelled"
	DraftExpired   DraftStatus = "expired"
)

// AutoScheduleDraft is a stored auto-schedule result awaiting confirmation.
type AutoScheduleDraft struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ReplaceExisting bool
	Result          schedule.AutoScheduleResult
	Status          DraftStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Patch carries the fields of an UpdateAppointment call. Nil means
// unchanged.
type Patch struct {
	Start           *time.Time
	End             *time.Time
	RoomID          *uuid.UUID
	ClearRoom       bool
	ProfessionalIDs *[]uuid.UUID
	Status          *schedule.AppointmentStatus
	// Force lets an administrator leave a terminal status.
	Force         bool
	PriceCents    *int64
	Currency      *string
	PaymentMethod *string
	Notes         *string
}

func (p Patch) apply(a schedule.Appointment) schedule.Appointment {
	out := a
	out.ProfessionalIDs = append([]uuid.UUID(nil), a.ProfessionalIDs...)
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	if p.ClearRoom {
		out.RoomID = nil
	} else if p.RoomID != nil {
		id := *p.RoomID
		out.RoomID = &id
	}
	if p.ProfessionalIDs != nil {
		out.ProfessionalIDs = append([]uuid.UUID(nil), (*p.ProfessionalIDs)...)
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.PriceCents != nil {
		out.PriceCents = p.PriceCents
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = p.PaymentMethod
	}
	if p.Notes != nil {
		out.Notes = p.Notes
	}
	return out
}

// ConfirmRequest finalises a pending auto-schedule draft.
type ConfirmRequest struct {
	// ServiceIDs restricts the merge to these proposals; empty means all.
	ServiceIDs []uuid.UUID
	// Selections overrides the selected professionals per service.
	Selections map[uuid.UUID][]uuid.UUID
	// Notes adds free text per service.
	Notes map[uuid.UUID]string
}

// CalendarDay is everything needed to render one day of the clinic.
type CalendarDay struct {
	Date          time.Time
	Rooms         []schedule.Room
	Professionals []schedule.Professional
	Appointments  []schedule.Appointment
}

package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a booking ("turno") occupying [Start, End) on an optional
// room and zero or more professionals.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ServiceID       uuid.UUID
	RoomID          *uuid.UUID
	ProfessionalIDs []uuid.UUID
	Start           time.Time
	End             time.Time
	Status          AppointmentStatus
	PriceCents      *int64
	Currency        string
	PaymentMethod   *string
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

func (a Appointment) HasProfessional(id uuid.UUID) bool {
	for _, p := range a.ProfessionalIDs {
		if p == id {
			return true
		}
	}
	return false
}

// Service is a therapy department ("departamento").
type Service struct {
	ID                     uuid.UUID
	Name                   string
	DefaultDurationMinutes int
	DefaultPriceCents      int64
}

type Professional struct {
	ID         uuid.UUID
	Name       string
	ServiceIDs []uuid.UUID
}

func (p Professional) QualifiedFor(serviceID uuid.UUID) bool {
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// Room is a consultorio.
type Room struct {
	ID   uuid.UUID
	Name string
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	DNI       string
	Birthdate *time.Time
	Guardians []string
}

// Catalog is the bookable universe for a clinic.
type Catalog struct {
	Rooms         []Room
	Services      []Service
	Professionals []Professional
}

func (c Catalog) Service(id uuid.UUID) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

func (c Catalog) Professional(id uuid.UUID) (Professional, bool) {
	for _, p := range c.Professionals {
		if p.ID == id {
			return p, true
		}
	}
	return Professional{}, false
}

// QualifiedProfessionals returns the professionals qualified for a service,
// ordered by id.
func (c Catalog) QualifiedProfessionals(serviceID uuid.UUID) []Professional {
	var out []Professional
	for _, p := range c.Professionals {
		if p.QualifiedFor(serviceID) {
			out = append(out, p)
		}
	}
	sortProfessionals(out)
	return out
}

type Candidate struct {
	ProfessionalID     uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	QualifiesAsDefault bool      `json:"qualifies_as_default"`
}

// Proposal is an unconfirmed slot produced for a single service.
type Proposal struct {
	ServiceID               uuid.UUID   `json:"service_id"`
	ServiceName             string      `json:"service_name"`
	Start                   time.Time   `json:"start"`
	End                     time.Time   `json:"end"`
	DurationMinutes         int         `json:"duration_minutes"`
	RoomID                  *uuid.UUID  `json:"room_id,omitempty"`
	Candidates              []Candidate `json:"candidate_professionals"`
	SelectedProfessionalIDs []uuid.UUID `json:"selected_professional_ids"`
	Notes                   string      `json:"notes,omitempty"`
}

func (p Proposal) candidateName(id uuid.UUID) string {
	for _, c := range p.Candidates {
		if c.ProfessionalID == id {
			return c.Name
		}
	}
	return id.String()
}

// MergedProposal is a single appointment-shaped record built from one or
// more proposals.
type MergedProposal struct {
	PatientID       uuid.UUID   `json:"patient_id"`
	ServiceID       uuid.UUID   `json:"service_id"`
	ServiceIDs      []uuid.UUID `json:"service_ids"`
	ServiceSummary  string      `json:"service_summary"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	DurationMinutes int         `json:"duration_minutes"`
	RoomID          *uuid.UUID  `json:"room_id,omitempty"`
	ProfessionalIDs []uuid.UUID `json:"professional_ids"`
	Notes           string      `json:"notes"`
}

// Appointment converts the merged proposal into a pending appointment.
func (m MergedProposal) Appointment() Appointment {
	notes := m.Notes
	return Appointment{
		PatientID:       m.PatientID,
		ServiceID:       m.ServiceID,
		RoomID:          m.RoomID,
		ProfessionalIDs: append([]uuid.UUID(nil), m.ProfessionalIDs...),
		Start:           m.Start,
		End:             m.End,
		Status:          StatusPending,
		Notes:           &notes,
	}
}

// CallerContext is the already-authenticated identity of whoever issues a
// scheduling call.
type CallerContext struct {
	IsAdmin           bool
	OwnProfessionalID *uuid.UUID
}

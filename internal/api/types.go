package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	PatientID       string   `json:"patient_id"`
	ServiceID       string   `json:"service_id"`
	RoomID          *string  `json:"room_id"`
	ProfessionalIDs []string `json:"professional_ids"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Status          string   `json:"status"`
	PriceCents      *int64   `json:"price_cents"`
	Currency        string   `json:"currency"`
	PaymentMethod   *string  `json:"payment_method"`
	Notes           *string  `json:"notes"`
}

// UpdateAppointmentRequest is a partial update; absent fields are left
// untouched. A room_id of "" unassigns the room.
type UpdateAppointmentRequest struct {
	Start           *string   `json:"start"`
	End             *string   `json:"end"`
	RoomID          *string   `json:"room_id"`
	ProfessionalIDs *[]string `json:"professional_ids"`
	Status          *string   `json:"status"`
	Force           bool      `json:"force"`
	PriceCents      *int64    `json:"price_cents"`
	Currency        *string   `json:"currency"`
	PaymentMethod   *string   `json:"payment_method"`
	Notes           *string   `json:"notes"`
}

type AutoScheduleRequest struct {
	ReplaceExisting bool `json:"replace_existing"`
}

type ConfirmAutoScheduleRequest struct {
	ServiceIDs []uuid.UUID               `json:"service_ids"`
	Selections map[uuid.UUID][]uuid.UUID `json:"selections"`
	Notes      map[uuid.UUID]string      `json:"notes"`
}

type AppointmentResponse struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	ServiceID       uuid.UUID   `json:"service_id"`
	RoomID          *uuid.UUID  `json:"room_id"`
	ProfessionalIDs []uuid.UUID `json:"professional_ids"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	Status          string      `json:"status"`
	PriceCents      *int64      `json:"price_cents,omitempty"`
	Currency        string      `json:"currency,omitempty"`
	PaymentMethod   *string     `json:"payment_method,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

type RoomResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ServiceResponse struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	DefaultDurationMinutes int       `json:"default_duration_minutes"`
	DefaultPriceCents      int64     `json:"default_price_cents"`
}

type ProfessionalResponse struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	ServiceIDs []uuid.UUID `json:"service_ids"`
}

type FormDataResponse struct {
	Rooms         []RoomResponse         `json:"rooms"`
	Services      []ServiceResponse      `json:"services"`
	Professionals []ProfessionalResponse `json:"professionals"`
}

type CalendarResponse struct {
	Date          string                 `json:"date"`
	Rooms         []RoomResponse         `json:"rooms"`
	Professionals []ProfessionalResponse `json:"professionals"`
	Appointments  []AppointmentResponse  `json:"appointments"`
}

type DraftResponse struct {
	ID              uuid.UUID           `json:"id"`
	PatientID       uuid.UUID           `json:"patient_id"`
	ReplaceExisting bool                `json:"replace_existing"`
	Status          string              `json:"status"`
	Proposals       []schedule.Proposal `json:"proposals"`
	Omitted         []schedule.Omission `json:"omitted"`
	ExpiresAt       time.Time           `json:"expires_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// ConflictWith is the booking that caused an overlap, when known.
	ConflictWith *uuid.UUID `json:"conflict_with,omitempty"`
}

func toAppointmentResponse(a schedule.Appointment) AppointmentResponse {
	pros := a.ProfessionalIDs
	if pros == nil {
		pros = []uuid.UUID{}
	}
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ServiceID:       a.ServiceID,
		RoomID:          a.RoomID,
		ProfessionalIDs: pros,
		Start:           a.Start,
		End:             a.End,
		Status:          string(a.Status),
		PriceCents:      a.PriceCents,
		Currency:        a.Currency,
		PaymentMethod:   a.PaymentMethod,
		Notes:           a.Notes,
	}
}

func toAppointmentResponses(appts []schedule.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toRoomResponses(rooms []schedule.Room) []RoomResponse {
	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomResponse{ID: r.ID, Name: r.Name})
	}
	return out
}

func toProfessionalResponses(pros []schedule.Professional) []ProfessionalResponse {
	out := make([]ProfessionalResponse, 0, len(pros))
	for _, p := range pros {
		ids := p.ServiceIDs
		if ids == nil {
			ids = []uuid.UUID{}
		}
		out = append(out, ProfessionalResponse{ID: p.ID, Name: p.Name, ServiceIDs: ids})
	}
	return out
}

func toFormDataResponse(c schedule.Catalog) FormDataResponse {
	services := make([]ServiceResponse, 0, len(c.Services))
	for _, s := range c.Services {
		services = append(services, ServiceResponse{
			ID:                     s.ID,
			Name:                   s.Name,
			DefaultDurationMinutes: s.DefaultDurationMinutes,
			DefaultPriceCents:      s.DefaultPriceCents,
		})
	}
	return FormDataResponse{
		Rooms:         toRoomResponses(c.Rooms),
		Services:      services,
		Professionals: toProfessionalResponses(c.Professionals),
	}
}

func toDraftResponse(d appointment.AutoScheduleDraft) DraftResponse {
	return DraftResponse{
		ID:              d.ID,
		PatientID:       d.PatientID,
		ReplaceExisting: d.ReplaceExisting,
		Status:          string(d.Status),
		Proposals:       d.Result.Proposals,
		Omitted:         d.Result.Omitted,
		ExpiresAt:       d.ExpiresAt,
	}
}

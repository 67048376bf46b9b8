package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDraftNotFound       = errors.New("auto-schedule draft not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetCatalog(ctx context.Context) (schedule.Catalog, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*schedule.Patient, error)
	ListRequiredServices(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]schedule.Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]schedule.Appointment, error)

	// For the authoritative conflict re-check
	ListOverlapping(ctx context.Context, start, end time.Time, roomID *uuid.UUID, professionalIDs []uuid.UUID) ([]schedule.Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error)
	UpdateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	// ReplaceAppointments cancels the listed bookings and creates a, all or nothing.
	ReplaceAppointments(ctx context.Context, cancel []uuid.UUID, a schedule.Appointment) (*schedule.Appointment, error)

	// Auto-schedule drafts
	CreateDraft(ctx context.Context, d AutoScheduleDraft) (*AutoScheduleDraft, error)
	GetPendingDraft(ctx context.Context, patientID uuid.UUID) (*AutoScheduleDraft, error)
	UpdateDraftStatus(ctx context.Context, id uuid.UUID, from, to DraftStatus) (*AutoScheduleDraft, error)
	FindExpiredDrafts(ctx context.Context, now time.Time) ([]AutoScheduleDraft, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

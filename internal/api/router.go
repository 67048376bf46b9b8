package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// SchedulingService is the part of appointment.Service the HTTP layer uses.
type SchedulingService interface {
	GetScheduleFormData(ctx context.Context) (schedule.Catalog, error)
	ListAppointments(ctx context.Context, date time.Time) ([]schedule.Appointment, error)
	Calendar(ctx context.Context, date time.Time, showAll *bool) (*appointment.CalendarDay, error)
	CreateAppointment(ctx context.Context, caller schedule.CallerContext, a schedule.Appointment) (*schedule.Appointment, error)
	UpdateAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID, patch appointment.Patch) (*schedule.Appointment, error)
	DeleteAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID) error
	AutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, replaceExisting bool) (*appointment.AutoScheduleDraft, error)
	ConfirmAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, req appointment.ConfirmRequest) (*schedule.Appointment, error)
	CancelAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID) error
}

type RouterConfig struct {
	Service  SchedulingService
	Postgres Pinger
	Redis    Pinger
	Logger   *zap.Logger
	Location *time.Location
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, loc: cfg.Location, logger: cfg.Logger}

	r.Group(func(r chi.Router) {
		r.Use(CallerMiddleware)

		r.Get("/schedule/form-data", h.formData)
		r.Get("/calendar", h.calendar)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.createAppointment)
			r.Patch("/{id}", h.updateAppointment)
			r.Delete("/{id}", h.deleteAppointment)
		})

		r.Route("/patients/{id}/auto-schedule", func(r chi.Router) {
			r.Post("/", h.autoSchedule)
			r.Post("/confirm", h.confirmAutoSchedule)
			r.Delete("/", h.cancelAutoSchedule)
		})
	})

	return r
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
	EventAutoScheduleProposed = "AUTOSCHEDULE_PROPOSED"
	EventAutoScheduleConfirm  = "AUTOSCHEDULE_CONFIRMED"
	EventAutoScheduleCancel   = "AUTOSCHEDULE_CANCELLED"
	EventAutoScheduleExpired  = "AUTOSCHEDULE_EXPIRED"
)

const defaultCurrency = "ARS"

var (
	ErrResourceBeingBooked = errors.New("room or professional is currently being booked, please retry")
	ErrDraftExpired        = errors.New("auto-schedule draft has expired")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GetScheduleFormData returns the rooms, services and professionals a
// booking form needs.
func (s *Service) GetScheduleFormData(ctx context.Context) (schedule.Catalog, error) {
	c, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return schedule.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

// ListAppointments returns every booking touching the given clinic day.
func (s *Service) ListAppointments(ctx context.Context, date time.Time) ([]schedule.Appointment, error) {
	from, to := s.dayBounds(date, date)
	appts, err := s.repo.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Calendar resolves the columns to display for a day. showAll is the
// optional manual override of the empty-day fallback.
func (s *Service) Calendar(ctx context.Context, date time.Time, showAll *bool) (*CalendarDay, error) {
	appts, err := s.ListAppointments(ctx, date)
	if err != nil {
		return nil, err
	}
	catalog, err := s.GetScheduleFormData(ctx)
	if err != nil {
		return nil, err
	}

	filter := schedule.NewRoomFilter(date.In(s.cfg.Location))
	if showAll != nil {
		filter.SetShowAll(*showAll)
	}

	return &CalendarDay{
		Date:          date,
		Rooms:         filter.Rooms(appts, catalog.Rooms),
		Professionals: schedule.VisibleProfessionals(appts, catalog.Professionals),
		Appointments:  appts,
	}, nil
}

// CreateAppointment books a new appointment. The caller-side check runs
// against the day's bookings; the commit then re-checks under resource locks.
func (s *Service) CreateAppointment(ctx context.Context, caller schedule.CallerContext, a schedule.Appointment) (*schedule.Appointment, error) {
	a.ID = uuid.Nil
	a = s.inClinicTime(a)
	if a.Status == "" {
		a.Status = schedule.StatusPending
	}
	if a.Currency == "" {
		a.Currency = defaultCurrency
	}

	cmd := schedule.Command{Kind: schedule.KindCreate, After: a}
	// Permission, required fields, blackout and minimum duration need no I/O.
	if err := schedule.Validate(caller, cmd, nil); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, a.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if a.PriceCents == nil {
		catalog, err := s.repo.GetCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		svc, ok := catalog.Service(a.ServiceID)
		if !ok {
			return nil, &schedule.ValidationError{Field: "service_id", Message: "unknown service"}
		}
		price := svc.DefaultPriceCents
		a.PriceCents = &price
	}

	if err := s.checkAgainstDay(ctx, caller, schedule.Command{Kind: schedule.KindCreate, After: a}); err != nil {
		return nil, err
	}

	created, err := s.commit(ctx, a, nil, func(lockCtx context.Context) (*schedule.Appointment, error) {
		return s.repo.CreateAppointment(lockCtx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, &created.ID, EventAppointmentCreated, map[string]any{
		"patient_id":       created.PatientID.String(),
		"service_id":       created.ServiceID.String(),
		"room_id":          created.RoomID,
		"professional_ids": created.ProfessionalIDs,
		"start":            created.Start,
		"end":              created.End,
	})

	return created, nil
}

// UpdateAppointment applies a partial change: move, resize, reassignment,
// status transition or bookkeeping fields.
func (s *Service) UpdateAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID, patch Patch) (*schedule.Appointment, error) {
	before, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	after := s.inClinicTime(patch.apply(*before))
	cmd := schedule.Command{Kind: schedule.ClassifyChange(*before, after), Before: *before, After: after}

	if err := schedule.Authorize(caller, cmd); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := schedule.CheckTransition(caller, before.Status, after.Status, patch.Force); err != nil {
			return nil, err
		}
	}
	if err := schedule.Validate(caller, cmd, nil); err != nil {
		return nil, err
	}

	write := func(ctx context.Context) (*schedule.Appointment, error) {
		return s.repo.UpdateAppointment(ctx, after)
	}

	var updated *schedule.Appointment
	if needsPlacement(cmd) {
		if err := s.checkAgainstDay(ctx, caller, cmd); err != nil {
			return nil, err
		}
		updated, err = s.commit(ctx, after, nil, write)
	} else {
		updated, err = write(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, schedule.ErrConflict) || errors.Is(err, ErrResourceBeingBooked) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.logEvent(ctx, &updated.ID, EventAppointmentUpdated, map[string]any{
		"kind":        string(cmd.Kind),
		"status_from": string(before.Status),
		"status_to":   string(updated.Status),
		"start":       updated.Start,
		"end":         updated.End,
	})

	return updated, nil
}

// DeleteAppointment removes an appointment. Only administrators may delete.
func (s *Service) DeleteAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID) error {
	before, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := schedule.Authorize(caller, schedule.Command{Kind: schedule.KindDelete, Before: *before}); err != nil {
		return err
	}

	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, &id, EventAppointmentDeleted, map[string]any{
		"start": before.Start,
		"end":   before.End,
	})
	return nil
}

func excluding(appts []schedule.Appointment, ids []uuid.UUID) []schedule.Appointment {
	if len(ids) == 0 {
		return appts
	}
	skip := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	out := make([]schedule.Appointment, 0, len(appts))
	for _, a := range appts {
		if !skip[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func needsPlacement(cmd schedule.Command) bool {
	if cmd.After.Status == schedule.StatusCancelled {
		return false
	}
	switch cmd.Kind {
	case schedule.KindMove, schedule.KindResize:
		return true
	case schedule.KindEdit:
		return cmd.Before.Status == schedule.StatusCancelled
	}
	return false
}

// checkAgainstDay runs the full command validation against the bookings of
// the days the new placement touches.
func (s *Service) checkAgainstDay(ctx context.Context, caller schedule.CallerContext, cmd schedule.Command) error {
	from, to := s.dayBounds(cmd.After.Start, cmd.After.End)
	existing, err := s.repo.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load day bookings: %w", err)
	}
	return schedule.Validate(caller, cmd, existing)
}

// commit re-runs the conflict check against the store's latest state while
// holding a lock on the room and every professional, and writes only if the
// placement is still admissible. Bookings listed in ignore are about to be
// replaced and do not block.
func (s *Service) commit(ctx context.Context, a schedule.Appointment, ignore []uuid.UUID, write func(ctx context.Context) (*schedule.Appointment, error)) (*schedule.Appointment, error) {
	var result *schedule.Appointment
	a = s.inClinicTime(a)

	keys := redisclient.ResourceKeys(a.RoomID, a.ProfessionalIDs)
	err := s.locker.WithResourceLocks(ctx, keys, func(lockCtx context.Context) error {
		latest, err := s.repo.ListOverlapping(lockCtx, a.Start, a.End, a.RoomID, a.ProfessionalIDs)
		if err != nil {
			return fmt.Errorf("check overlapping appointments: %w", err)
		}
		latest = excluding(latest, ignore)
		if err := schedule.CheckConflict(schedule.PlacementOf(a), latest); err != nil {
			var ce *schedule.ConflictError
			if errors.As(err, &ce) && ce.Reason == schedule.ReasonOverlap {
				return &schedule.ConflictError{Reason: schedule.ReasonSlotTaken, With: ce.With}
			}
			return err
		}

		written, err := write(lockCtx)
		if err != nil {
			return err
		}
		result = written
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrResourceBeingBooked
		}
		return nil, err
	}

	return result, nil
}

// inClinicTime moves a's placement onto the clinic clock. The blackout and
// day boundaries are wall-clock rules and only hold in that location.
func (s *Service) inClinicTime(a schedule.Appointment) schedule.Appointment {
	a.Start = a.Start.In(s.cfg.Location)
	a.End = a.End.In(s.cfg.Location)
	return a
}

// dayBounds returns local midnight of from's day and of the day after to.
func (s *Service) dayBounds(from, to time.Time) (time.Time, time.Time) {
	f := from.In(s.cfg.Location)
	t := to.In(s.cfg.Location)
	start := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, s.cfg.Location)
	end := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location).AddDate(0, 0, 1)
	return start, end
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.Any("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func (s *Service) schedulerConfig() schedule.AutoSchedulerConfig {
	cfg := schedule.DefaultAutoSchedulerConfig(s.cfg.Location)
	if s.cfg.DayEnd > s.cfg.DayStart {
		cfg.DayStart = s.cfg.DayStart
		cfg.DayEnd = s.cfg.DayEnd
	}
	cfg.StartWeekday = s.cfg.SchedulingWeekday
	if s.cfg.HorizonWeeks > 0 {
		cfg.HorizonDays = s.cfg.HorizonWeeks * 7
	}
	return cfg
}

// AutoSchedule proposes a slot for every service the patient requires and
// stores the result as a pending draft. Any earlier pending draft of the
// patient is cancelled.
func (s *Service) AutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, replaceExisting bool) (*AutoScheduleDraft, error) {
	if !caller.IsAdmin {
		return nil, schedule.ErrForbidden
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	serviceIDs, err := s.repo.ListRequiredServices(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load required services: %w", err)
	}
	if len(serviceIDs) == 0 {
		return nil, &schedule.ValidationError{Field: "services", Message: "patient has no required services"}
	}

	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	now := s.now()
	scheduler := schedule.NewAutoScheduler(s.schedulerConfig(), catalog)
	window := scheduler.Window(now)

	bookings, err := s.repo.ListAppointmentsBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	own, err := s.repo.ListPatientAppointments(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient appointments: %w", err)
	}

	result := scheduler.Schedule(schedule.AutoScheduleRequest{
		PatientID:           patientID,
		ServiceIDs:          serviceIDs,
		From:                now,
		ReplaceExisting:     replaceExisting,
		PatientAppointments: own,
		Bookings:            bookings,
	})

	if err := s.cancelPendingDraft(ctx, patientID); err != nil {
		return nil, err
	}

	draft, err := s.repo.CreateDraft(ctx, AutoScheduleDraft{
		PatientID:       patientID,
		ReplaceExisting: replaceExisting,
		Result:          result,
		Status:          DraftPending,
		ExpiresAt:       now.Add(s.cfg.DraftTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("store draft: %w", err)
	}

	s.logger.Info("auto-schedule proposed",
		zap.String("patient_id", patientID.String()),
		zap.Int("proposals", len(result.Proposals)),
		zap.Int("omitted", len(result.Omitted)),
	)
	s.logEvent(ctx, nil, EventAutoScheduleProposed, map[string]any{
		"patient_id": patientID.String(),
		"draft_id":   draft.ID.String(),
		"proposals":  len(result.Proposals),
		"omitted":    result.Omitted,
	})

	return draft, nil
}

// ConfirmAutoSchedule merges the pending draft's proposals into a single
// appointment and commits it.
func (s *Service) ConfirmAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, req ConfirmRequest) (*schedule.Appointment, error) {
	if !caller.IsAdmin {
		return nil, schedule.ErrForbidden
	}

	draft, err := s.repo.GetPendingDraft(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}

	if s.now().After(draft.ExpiresAt) {
		if _, err := s.repo.UpdateDraftStatus(ctx, draft.ID, DraftPending, DraftExpired); err != nil && !errors.Is(err, ErrDraftNotFound) {
			s.logger.Warn("failed to expire draft", zap.String("draft_id", draft.ID.String()), zap.Error(err))
		}
		return nil, ErrDraftExpired
	}

	proposals, err := pickProposals(draft.Result.Proposals, req)
	if err != nil {
		return nil, err
	}
	if err := schedule.ValidateSelection(proposals); err != nil {
		return nil, err
	}

	merged, err := schedule.MergeProposals(patientID, proposals)
	if err != nil {
		return nil, err
	}

	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := s.inClinicTime(merged.Appointment())
	a.Currency = defaultCurrency
	var price int64
	for _, id := range merged.ServiceIDs {
		if svc, ok := catalog.Service(id); ok {
			price += svc.DefaultPriceCents
		}
	}
	a.PriceCents = &price

	var replaced []uuid.UUID
	if draft.ReplaceExisting {
		own, err := s.repo.ListPatientAppointments(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("load patient appointments: %w", err)
		}
		replaced = activeFor(own, merged.ServiceIDs)
	}

	from, to := s.dayBounds(a.Start, a.End)
	day, err := s.repo.ListAppointmentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load day bookings: %w", err)
	}
	cmd := schedule.Command{Kind: schedule.KindCreate, After: a}
	if err := schedule.Validate(caller, cmd, excluding(day, replaced)); err != nil {
		return nil, err
	}

	created, err := s.commit(ctx, a, replaced, func(lockCtx context.Context) (*schedule.Appointment, error) {
		if len(replaced) == 0 {
			return s.repo.CreateAppointment(lockCtx, a)
		}
		return s.repo.ReplaceAppointments(lockCtx, replaced, a)
	})
	if err != nil {
		if errors.Is(err, schedule.ErrConflict) || errors.Is(err, ErrResourceBeingBooked) || errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("confirm auto-schedule: %w", err)
	}

	for _, id := range replaced {
		s.logEvent(ctx, &id, EventAppointmentUpdated, map[string]any{
			"kind":           "replace",
			"status_to":      string(schedule.StatusCancelled),
			"replacement_id": created.ID.String(),
		})
	}

	if _, err := s.repo.UpdateDraftStatus(ctx, draft.ID, DraftPending, DraftConfirmed); err != nil {
		s.logger.Warn("failed to mark draft confirmed", zap.String("draft_id", draft.ID.String()), zap.Error(err))
	}

	s.logEvent(ctx, &created.ID, EventAutoScheduleConfirm, map[string]any{
		"patient_id":       patientID.String(),
		"draft_id":         draft.ID.String(),
		"service_ids":      merged.ServiceIDs,
		"service_summary":  merged.ServiceSummary,
		"professional_ids": merged.ProfessionalIDs,
		"replaced":         replaced,
	})

	return created, nil
}

// CancelAutoSchedule discards the patient's pending draft. Calling it with
// nothing pending is not an error.
func (s *Service) CancelAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID) error {
	if !caller.IsAdmin {
		return schedule.ErrForbidden
	}
	return s.cancelPendingDraft(ctx, patientID)
}

// ExpireDrafts marks every overdue pending draft as expired and returns how
// many were expired.
func (s *Service) ExpireDrafts(ctx context.Context) (int, error) {
	drafts, err := s.repo.FindExpiredDrafts(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired drafts: %w", err)
	}

	expired := 0
	for _, d := range drafts {
		if _, err := s.repo.UpdateDraftStatus(ctx, d.ID, DraftPending, DraftExpired); err != nil {
			if errors.Is(err, ErrDraftNotFound) {
				// confirmed or cancelled concurrently
				continue
			}
			s.logger.Warn("failed to expire draft", zap.String("draft_id", d.ID.String()), zap.Error(err))
			continue
		}
		expired++
		s.logEvent(ctx, nil, EventAutoScheduleExpired, map[string]any{
			"patient_id": d.PatientID.String(),
			"draft_id":   d.ID.String(),
		})
	}

	return expired, nil
}

func (s *Service) cancelPendingDraft(ctx context.Context, patientID uuid.UUID) error {
	draft, err := s.repo.GetPendingDraft(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			return nil
		}
		return fmt.Errorf("load draft: %w", err)
	}

	if _, err := s.repo.UpdateDraftStatus(ctx, draft.ID, DraftPending, DraftCancelled); err != nil {
		if errors.Is(err, ErrDraftNotFound) {
			return nil
		}
		return fmt.Errorf("cancel draft: %w", err)
	}

	s.logEvent(ctx, nil, EventAutoScheduleCancel, map[string]any{
		"patient_id": patientID.String(),
		"draft_id":   draft.ID.String(),
	})
	return nil
}

// pickProposals restricts the draft to the requested services and applies
// the caller's professional selections and notes.
func pickProposals(all []schedule.Proposal, req ConfirmRequest) ([]schedule.Proposal, error) {
	if len(all) == 0 {
		return nil, schedule.ErrNoProposals
	}

	wanted := map[uuid.UUID]bool{}
	for _, id := range req.ServiceIDs {
		wanted[id] = true
	}

	var out []schedule.Proposal
	for _, p := range all {
		if len(wanted) > 0 && !wanted[p.ServiceID] {
			continue
		}
		p.Candidates = append([]schedule.Candidate(nil), p.Candidates...)
		p.SelectedProfessionalIDs = append([]uuid.UUID(nil), p.SelectedProfessionalIDs...)
		if sel, ok := req.Selections[p.ServiceID]; ok {
			if err := p.Select(sel); err != nil {
				return nil, err
			}
		}
		if n, ok := req.Notes[p.ServiceID]; ok {
			p.Notes = n
		}
		out = append(out, p)
	}

	for id := range wanted {
		if !containsProposal(out, id) {
			return nil, &schedule.ValidationError{Field: "service_ids", Message: fmt.Sprintf("no proposal for service %s", id)}
		}
	}
	if len(out) == 0 {
		return nil, schedule.ErrNoProposals
	}
	return out, nil
}

func containsProposal(ps []schedule.Proposal, serviceID uuid.UUID) bool {
	for _, p := range ps {
		if p.ServiceID == serviceID {
			return true
		}
	}
	return false
}

func activeFor(appts []schedule.Appointment, serviceIDs []uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, a := range appts {
		if a.Status == schedule.StatusCancelled {
			continue
		}
		for _, sid := range serviceIDs {
			if a.ServiceID == sid {
				ids = append(ids, a.ID)
				break
			}
		}
	}
	return ids
}

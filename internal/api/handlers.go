package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const dateLayout = "2006-01-02"

var errNotConfigured = errors.New("dependency not configured")

type handlers struct {
	svc    SchedulingService
	loc    *time.Location
	logger *zap.Logger
}

func (h *handlers) formData(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.GetScheduleFormData(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFormDataResponse(catalog))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	appts, err := h.svc.ListAppointments(r.Context(), date)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) calendar(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	var showAll *bool
	if v := r.URL.Query().Get("all"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_all", "all must be true or false")
			return
		}
		showAll = &b
	}

	day, err := h.svc.Calendar(r.Context(), date, showAll)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		Date:          date.Format(dateLayout),
		Rooms:         toRoomResponses(day.Rooms),
		Professionals: toProfessionalResponses(day.Professionals),
		Appointments:  toAppointmentResponses(day.Appointments),
	})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	a, err := req.toAppointment(h.loc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	created, err := h.svc.CreateAppointment(r.Context(), CallerFrom(r.Context()), a)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*created))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patch, err := req.toPatch(h.loc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	updated, err := h.svc.UpdateAppointment(r.Context(), CallerFrom(r.Context()), id, patch)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid_appointment_id")
	if !ok {
		return
	}

	if err := h.svc.DeleteAppointment(r.Context(), CallerFrom(r.Context()), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) autoSchedule(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parseID(w, r, "invalid_patient_id")
	if !ok {
		return
	}

	var req AutoScheduleRequest
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	draft, err := h.svc.AutoSchedule(r.Context(), CallerFrom(r.Context()), patientID, req.ReplaceExisting)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDraftResponse(*draft))
}

func (h *handlers) confirmAutoSchedule(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parseID(w, r, "invalid_patient_id")
	if !ok {
		return
	}

	var req ConfirmAutoScheduleRequest
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	created, err := h.svc.ConfirmAutoSchedule(r.Context(), CallerFrom(r.Context()), patientID, appointment.ConfirmRequest{
		ServiceIDs: req.ServiceIDs,
		Selections: req.Selections,
		Notes:      req.Notes,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*created))
}

func (h *handlers) cancelAutoSchedule(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parseID(w, r, "invalid_patient_id")
	if !ok {
		return
	}

	if err := h.svc.CancelAutoSchedule(r.Context(), CallerFrom(r.Context()), patientID); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		writeError(w, http.StatusBadRequest, "invalid_date", "date is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(dateLayout, v, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func parseID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (req CreateAppointmentRequest) toAppointment(loc *time.Location) (schedule.Appointment, error) {
	var a schedule.Appointment
	var err error

	if a.PatientID, err = parseField("patient_id", req.PatientID); err != nil {
		return a, err
	}
	if a.ServiceID, err = parseField("service_id", req.ServiceID); err != nil {
		return a, err
	}
	if req.RoomID != nil && *req.RoomID != "" {
		id, err := parseField("room_id", *req.RoomID)
		if err != nil {
			return a, err
		}
		a.RoomID = &id
	}
	if a.ProfessionalIDs, err = parseIDList(req.ProfessionalIDs); err != nil {
		return a, err
	}
	if a.Start, err = parseTime("start", req.Start, loc); err != nil {
		return a, err
	}
	if a.End, err = parseTime("end", req.End, loc); err != nil {
		return a, err
	}

	a.Status = schedule.AppointmentStatus(req.Status)
	a.PriceCents = req.PriceCents
	a.Currency = req.Currency
	a.PaymentMethod = req.PaymentMethod
	a.Notes = req.Notes
	return a, nil
}

func (req UpdateAppointmentRequest) toPatch(loc *time.Location) (appointment.Patch, error) {
	var p appointment.Patch

	if req.Start != nil {
		t, err := parseTime("start", *req.Start, loc)
		if err != nil {
			return p, err
		}
		p.Start = &t
	}
	if req.End != nil {
		t, err := parseTime("end", *req.End, loc)
		if err != nil {
			return p, err
		}
		p.End = &t
	}
	if req.RoomID != nil {
		if *req.RoomID == "" {
			p.ClearRoom = true
		} else {
			id, err := parseField("room_id", *req.RoomID)
			if err != nil {
				return p, err
			}
			p.RoomID = &id
		}
	}
	if req.ProfessionalIDs != nil {
		ids, err := parseIDList(*req.ProfessionalIDs)
		if err != nil {
			return p, err
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		p.ProfessionalIDs = &ids
	}
	if req.Status != nil {
		s := schedule.AppointmentStatus(*req.Status)
		p.Status = &s
	}

	p.Force = req.Force
	p.PriceCents = req.PriceCents
	p.Currency = req.Currency
	p.PaymentMethod = req.PaymentMethod
	p.Notes = req.Notes
	return p, nil
}

func parseField(field, v string) (uuid.UUID, error) {
	if v == "" {
		return uuid.Nil, &schedule.ValidationError{Field: field, Message: "is required"}
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, &schedule.ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return id, nil
}

func parseIDList(vs []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range vs {
		id, err := parseField("professional_ids", v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseTime reads an RFC 3339 timestamp and returns it on the clinic clock.
func parseTime(field, v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, &schedule.ValidationError{Field: field, Message: "is required"}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &schedule.ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return t.In(loc), nil
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *schedule.ConflictError
	var ve *schedule.ValidationError

	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:        strings.ToLower(string(ce.Reason)),
			Details:      err.Error(),
			ConflictWith: ce.With,
		})
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, schedule.ErrNoProfessionalSelected):
		writeError(w, http.StatusBadRequest, "no_professional_selected", err.Error())
	case errors.Is(err, schedule.ErrProfessionalNotQualified):
		writeError(w, http.StatusBadRequest, "professional_not_qualified", err.Error())
	case errors.Is(err, schedule.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "draft_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrDraftExpired):
		writeError(w, http.StatusConflict, "draft_expired", err.Error())
	case errors.Is(err, schedule.ErrNoProposals):
		writeError(w, http.StatusConflict, "no_proposals", err.Error())
	case errors.Is(err, appointment.ErrResourceBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "resource_being_booked", "room or professional is currently being booked, please retry shortly")
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

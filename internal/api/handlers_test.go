package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

type fakeService struct {
	err error
	// placementCheck runs the conflict detector on created appointments.
	placementCheck bool

	caller  schedule.CallerContext
	date    time.Time
	showAll *bool
	created schedule.Appointment
	patch   appointment.Patch
	id      uuid.UUID
	replace bool
	confirm appointment.ConfirmRequest

	appointments []schedule.Appointment
	catalog      schedule.Catalog
}

func (f *fakeService) GetScheduleFormData(ctx context.Context) (schedule.Catalog, error) {
	return f.catalog, f.err
}

func (f *fakeService) ListAppointments(ctx context.Context, date time.Time) ([]schedule.Appointment, error) {
	f.date = date
	return f.appointments, f.err
}

func (f *fakeService) Calendar(ctx context.Context, date time.Time, showAll *bool) (*appointment.CalendarDay, error) {
	f.date = date
	f.showAll = showAll
	if f.err != nil {
		return nil, f.err
	}
	return &appointment.CalendarDay{Date: date, Rooms: f.catalog.Rooms, Appointments: f.appointments}, nil
}

func (f *fakeService) CreateAppointment(ctx context.Context, caller schedule.CallerContext, a schedule.Appointment) (*schedule.Appointment, error) {
	f.caller = caller
	f.created = a
	if f.err != nil {
		return nil, f.err
	}
	if f.placementCheck {
		if err := schedule.CheckConflict(schedule.PlacementOf(a), nil); err != nil {
			return nil, err
		}
	}
	a.ID = testID(77)
	a.Status = schedule.StatusPending
	return &a, nil
}

func (f *fakeService) UpdateAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID, patch appointment.Patch) (*schedule.Appointment, error) {
	f.caller = caller
	f.id = id
	f.patch = patch
	if f.err != nil {
		return nil, f.err
	}
	return &schedule.Appointment{ID: id, Status: schedule.StatusConfirmed}, nil
}

func (f *fakeService) DeleteAppointment(ctx context.Context, caller schedule.CallerContext, id uuid.UUID) error {
	f.caller = caller
	f.id = id
	return f.err
}

func (f *fakeService) AutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, replaceExisting bool) (*appointment.AutoScheduleDraft, error) {
	f.caller = caller
	f.id = patientID
	f.replace = replaceExisting
	if f.err != nil {
		return nil, f.err
	}
	return &appointment.AutoScheduleDraft{
		ID:        testID(300),
		PatientID: patientID,
		Status:    appointment.DraftPending,
		Result: schedule.AutoScheduleResult{
			Proposals: []schedule.Proposal{{
				ServiceID:   testID(501),
				ServiceName: "Fonoaudiología",
				Candidates:  []schedule.Candidate{{ProfessionalID: testID(11), Name: "Ana", QualifiesAsDefault: true}},
			}},
			Omitted: []schedule.Omission{{ServiceID: testID(502), Reason: schedule.OmitNoSlotFound}},
		},
	}, nil
}

func (f *fakeService) ConfirmAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID, req appointment.ConfirmRequest) (*schedule.Appointment, error) {
	f.caller = caller
	f.id = patientID
	f.confirm = req
	if f.err != nil {
		return nil, f.err
	}
	return &schedule.Appointment{ID: testID(78), PatientID: patientID, Status: schedule.StatusPending}, nil
}

func (f *fakeService) CancelAutoSchedule(ctx context.Context, caller schedule.CallerContext, patientID uuid.UUID) error {
	f.caller = caller
	f.id = patientID
	return f.err
}

func newTestRouter(svc SchedulingService) http.Handler {
	return NewRouter(RouterConfig{
		Service:  svc,
		Location: time.UTC,
		Env:      "test",
		Version:  "test",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

var adminHeaders = map[string]string{HeaderCallerAdmin: "true"}

func TestHealth(t *testing.T) {
	down := PingFunc(func(ctx context.Context) error { return errors.New("down") })
	up := PingFunc(func(ctx context.Context) error { return nil })

	tests := []struct {
		name       string
		postgres   Pinger
		redis      Pinger
		wantCode   int
		wantStatus string
	}{
		{"all up", up, up, http.StatusOK, "ok"},
		{"redis down", up, down, http.StatusOK, "degraded"},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error"},
		{"not configured", nil, nil, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Service: &fakeService{}, Postgres: tt.postgres, Redis: tt.redis})

			rec := do(t, h, http.MethodGet, "/health/ready", "", nil)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}

	rec := do(t, newTestRouter(&fakeService{}), http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListAppointments(t *testing.T) {
	svc := &fakeService{appointments: []schedule.Appointment{{ID: testID(1), Status: schedule.StatusConfirmed}}}
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/appointments?date=2026-03-02", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.date.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))

	var resp []AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, testID(1), resp[0].ID)
	assert.Equal(t, []uuid.UUID{}, resp[0].ProfessionalIDs)

	rec = do(t, h, http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rec).Error)
}

func TestCalendarOverride(t *testing.T) {
	svc := &fakeService{catalog: schedule.Catalog{Rooms: []schedule.Room{{ID: testID(1), Name: "Consultorio 1"}}}}
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodGet, "/calendar?date=2026-03-02", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.showAll)

	rec = do(t, h, http.MethodGet, "/calendar?date=2026-03-02&all=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.showAll)
	assert.True(t, *svc.showAll)

	var resp CalendarResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "2026-03-02", resp.Date)
	assert.Len(t, resp.Rooms, 1)
}

func TestCreateAppointment(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)

	body := fmt.Sprintf(`{
		"patient_id": %q,
		"service_id": %q,
		"room_id": %q,
		"professional_ids": [%q],
		"start": "2026-03-02T10:00:00Z",
		"end": "2026-03-02T11:00:00Z"
	}`, testID(900), testID(501), testID(1), testID(11))

	rec := do(t, h, http.MethodPost, "/appointments", body, adminHeaders)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.True(t, svc.caller.IsAdmin)
	assert.Equal(t, testID(900), svc.created.PatientID)
	require.NotNil(t, svc.created.RoomID)
	assert.Equal(t, testID(1), *svc.created.RoomID)
	assert.Equal(t, []uuid.UUID{testID(11)}, svc.created.ProfessionalIDs)
	assert.True(t, svc.created.End.Equal(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)))

	var resp AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testID(77), resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestCreateAppointmentReadsClinicClock(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	svc := &fakeService{placementCheck: true}
	h := NewRouter(RouterConfig{Service: svc, Location: art, Env: "test", Version: "test"})

	post := func(start, end string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{
			"patient_id": %q,
			"service_id": %q,
			"professional_ids": [%q],
			"start": %q,
			"end": %q
		}`, testID(900), testID(501), testID(11), start, end)
		return do(t, h, http.MethodPost, "/appointments", body, adminHeaders)
	}

	// 13:15 at the clinic
	rec := post("2026-03-02T16:15:00Z", "2026-03-02T16:45:00Z")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "blackout", decodeError(t, rec).Error)
	assert.Equal(t, art, svc.created.Start.Location())
	assert.Equal(t, 13, svc.created.Start.Hour())

	// 10:15 at the clinic
	rec = post("2026-03-02T13:15:00Z", "2026-03-02T13:45:00Z")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 10, svc.created.Start.Hour())
}

func TestCreateAppointmentValidation(t *testing.T) {
	h := newTestRouter(&fakeService{})

	rec := do(t, h, http.MethodPost, "/appointments", `{"service_id":"x"}`, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, "/appointments", `{`, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"overlap", &schedule.ConflictError{Reason: schedule.ReasonOverlap, With: ptr(testID(5))}, http.StatusConflict, "overlap"},
		{"blackout", &schedule.ConflictError{Reason: schedule.ReasonBlackout}, http.StatusConflict, "blackout"},
		{"too short", &schedule.ConflictError{Reason: schedule.ReasonTooShort}, http.StatusConflict, "too_short"},
		{"slot taken", &schedule.ConflictError{Reason: schedule.ReasonSlotTaken}, http.StatusConflict, "slot_taken"},
		{"forbidden", schedule.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{"transition", fmt.Errorf("%w: completed -> pending", schedule.ErrInvalidTransition), http.StatusConflict, "invalid_status_transition"},
		{"locked", appointment.ErrResourceBeingBooked, http.StatusConflict, "resource_being_booked"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeService{err: tt.err})

			rec := do(t, h, http.MethodPatch, "/appointments/"+testID(1).String(), `{"end":"2026-03-02T11:30:00Z"}`, adminHeaders)
			assert.Equal(t, tt.wantCode, rec.Code)

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantErr, resp.Error)
			if tt.name == "overlap" {
				require.NotNil(t, resp.ConflictWith)
				assert.Equal(t, testID(5), *resp.ConflictWith)
			}
		})
	}
}

func TestUpdateAppointmentPatch(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)

	headers := map[string]string{HeaderCallerProfessionalID: testID(11).String()}
	rec := do(t, h, http.MethodPatch, "/appointments/"+testID(1).String(), `{"room_id":"","status":"completed"}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, svc.caller.IsAdmin)
	require.NotNil(t, svc.caller.OwnProfessionalID)
	assert.Equal(t, testID(11), *svc.caller.OwnProfessionalID)
	assert.Equal(t, testID(1), svc.id)
	assert.True(t, svc.patch.ClearRoom)
	require.NotNil(t, svc.patch.Status)
	assert.Equal(t, schedule.StatusCompleted, *svc.patch.Status)
	assert.Nil(t, svc.patch.Start)
}

func TestCallerHeadersAreValidated(t *testing.T) {
	h := newTestRouter(&fakeService{})

	rec := do(t, h, http.MethodDelete, "/appointments/"+testID(1).String(), "", map[string]string{HeaderCallerProfessionalID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_caller", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodDelete, "/appointments/"+testID(1).String(), "", map[string]string{HeaderCallerAdmin: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAppointment(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)

	rec := do(t, h, http.MethodDelete, "/appointments/"+testID(1).String(), "", adminHeaders)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testID(1), svc.id)

	rec = do(t, h, http.MethodDelete, "/appointments/not-a-uuid", "", adminHeaders)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoScheduleRoutes(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)
	path := "/patients/" + testID(900).String() + "/auto-schedule"

	rec := do(t, h, http.MethodPost, path, `{"replace_existing":true}`, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.replace)
	assert.Equal(t, testID(900), svc.id)

	var draft map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&draft))
	proposals := draft["proposals"].([]any)
	require.Len(t, proposals, 1)
	assert.Contains(t, proposals[0], "candidate_professionals")
	omitted := draft["omitted"].([]any)
	assert.Equal(t, "NO_SLOT_FOUND", omitted[0].(map[string]any)["reason"])

	rec = do(t, h, http.MethodPost, path, "", adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.replace)

	body := fmt.Sprintf(`{"selections":{%q:[%q]},"notes":{%q:"Trae informe"}}`, testID(501), testID(11), testID(501))
	rec = do(t, h, http.MethodPost, path+"/confirm", body, adminHeaders)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []uuid.UUID{testID(11)}, svc.confirm.Selections[testID(501)])
	assert.Equal(t, "Trae informe", svc.confirm.Notes[testID(501)])

	rec = do(t, h, http.MethodDelete, path, "", adminHeaders)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func ptr[T any](v T) *T {
	return &v
}

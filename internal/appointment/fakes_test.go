package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func ptrID(id uuid.UUID) *uuid.UUID {
	return &id
}

// at returns a UTC time relative to Monday 2026-03-02.
func at(dayOffset, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+dayOffset, hour, minute, 0, 0, time.UTC)
}

type memRepo struct {
	mu           sync.Mutex
	catalog      schedule.Catalog
	patients     map[uuid.UUID]schedule.Patient
	required     map[uuid.UUID][]uuid.UUID
	appointments map[uuid.UUID]schedule.Appointment
	drafts       map[uuid.UUID]AutoScheduleDraft
	events       []EventLog

	// replaceErr makes ReplaceAppointments fail before touching anything.
	replaceErr error
}

func newMemRepo(catalog schedule.Catalog) *memRepo {
	return &memRepo{
		catalog:      catalog,
		patients:     map[uuid.UUID]schedule.Patient{},
		required:     map[uuid.UUID][]uuid.UUID{},
		appointments: map[uuid.UUID]schedule.Appointment{},
		drafts:       map[uuid.UUID]AutoScheduleDraft{},
	}
}

func (r *memRepo) put(a schedule.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (r *memRepo) GetCatalog(ctx context.Context) (schedule.Catalog, error) {
	return r.catalog, nil
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*schedule.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) ListRequiredServices(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.required[patientID], nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) filter(keep func(schedule.Appointment) bool) []schedule.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.Appointment
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *memRepo) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]schedule.Appointment, error) {
	return r.filter(func(a schedule.Appointment) bool {
		return a.Start.Before(to) && a.End.After(from)
	}), nil
}

func (r *memRepo) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]schedule.Appointment, error) {
	return r.filter(func(a schedule.Appointment) bool {
		return a.PatientID == patientID
	}), nil
}

func (r *memRepo) ListOverlapping(ctx context.Context, start, end time.Time, roomID *uuid.UUID, professionalIDs []uuid.UUID) ([]schedule.Appointment, error) {
	return r.filter(func(a schedule.Appointment) bool {
		if a.Status == schedule.StatusCancelled || !a.Start.Before(end) || !a.End.After(start) {
			return false
		}
		if roomID != nil && a.RoomID != nil && *a.RoomID == *roomID {
			return true
		}
		for _, id := range professionalIDs {
			if a.HasProfessional(id) {
				return true
			}
		}
		return false
	}), nil
}

func (r *memRepo) CreateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[a.ID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	a.UpdatedAt = time.Now()
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) ReplaceAppointments(ctx context.Context, cancel []uuid.UUID, a schedule.Appointment) (*schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceErr != nil {
		return nil, r.replaceErr
	}
	for _, id := range cancel {
		old, ok := r.appointments[id]
		if !ok || old.Status == schedule.StatusCancelled {
			return nil, ErrAppointmentNotFound
		}
	}
	for _, id := range cancel {
		old := r.appointments[id]
		old.Status = schedule.StatusCancelled
		r.appointments[id] = old
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *memRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *memRepo) CreateDraft(ctx context.Context, d AutoScheduleDraft) (*AutoScheduleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// round-trip the result like the jsonb column does
	raw, err := json.Marshal(d.Result)
	if err != nil {
		return nil, err
	}
	d.Result = schedule.AutoScheduleResult{}
	if err := json.Unmarshal(raw, &d.Result); err != nil {
		return nil, err
	}
	d.ID = uuid.New()
	r.drafts[d.ID] = d
	return &d, nil
}

func (r *memRepo) GetPendingDraft(ctx context.Context, patientID uuid.UUID) (*AutoScheduleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drafts {
		if d.PatientID == patientID && d.Status == DraftPending {
			return &d, nil
		}
	}
	return nil, ErrDraftNotFound
}

func (r *memRepo) UpdateDraftStatus(ctx context.Context, id uuid.UUID, from, to DraftStatus) (*AutoScheduleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.Status != from {
		return nil, ErrDraftNotFound
	}
	d.Status = to
	r.drafts[id] = d
	return &d, nil
}

func (r *memRepo) FindExpiredDrafts(ctx context.Context, now time.Time) ([]AutoScheduleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AutoScheduleDraft
	for _, d := range r.drafts {
		if d.Status == DraftPending && d.ExpiresAt.Before(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// fakeLocker runs fn in-process. beforeFn simulates a concurrent writer that
// slips in between the caller-side check and the lock.
type fakeLocker struct {
	busy     bool
	beforeFn func()
	calls    [][]string
}

func (l *fakeLocker) WithResourceLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.calls = append(l.calls, keys)
	if l.busy {
		return fmt.Errorf("%w: %s", redisclient.ErrLockNotAcquired, keys[0])
	}
	if l.beforeFn != nil {
		l.beforeFn()
	}
	return fn(ctx)
}

package schedule

import (
	"time"

	"github.com/google/uuid"
)

const (
	minSearchStep      = 30 * time.Minute
	defaultHorizonDays = 8 * 7
)

type OmitReason string

const (
	OmitAlreadyScheduled OmitReason = "ALREADY_SCHEDULED"
	OmitNoSlotFound      OmitReason = "NO_SLOT_FOUND"
	OmitUnknownService   OmitReason = "UNKNOWN_SERVICE"
)

type Omission struct {
	ServiceID uuid.UUID  `json:"service_id"`
	Reason    OmitReason `json:"reason"`
}

type AutoScheduleResult struct {
	Proposals []Proposal `json:"proposals"`
	Omitted   []Omission `json:"omitted"`
}

// AutoSchedulerConfig describes the clinic calendar the search walks.
type AutoSchedulerConfig struct {
	Location *time.Location
	// DayStart and DayEnd are offsets from local midnight.
	DayStart time.Duration
	DayEnd   time.Duration
	// StartWeekday is the clinic's standard scheduling day; the search
	// begins on its next occurrence.
	StartWeekday time.Weekday
	HorizonDays  int
	ClosedDays   []time.Weekday
	Ranker       Ranker
}

func DefaultAutoSchedulerConfig(loc *time.Location) AutoSchedulerConfig {
	return AutoSchedulerConfig{
		Location:     loc,
		DayStart:     8 * time.Hour,
		DayEnd:       20 * time.Hour,
		StartWeekday: time.Monday,
		HorizonDays:  defaultHorizonDays,
		ClosedDays:   []time.Weekday{time.Saturday, time.Sunday},
		Ranker:       LeastLoaded{},
	}
}

type AutoScheduleRequest struct {
	PatientID  uuid.UUID
	ServiceIDs []uuid.UUID
	// From is the moment the search is requested at.
	From            time.Time
	ReplaceExisting bool
	// PatientAppointments are the patient's own bookings.
	PatientAppointments []Appointment
	// Bookings are every booking inside the search horizon.
	Bookings []Appointment
}

type AutoScheduler struct {
	cfg     AutoSchedulerConfig
	catalog Catalog
}

func NewAutoScheduler(cfg AutoSchedulerConfig, catalog Catalog) *AutoScheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.Ranker == nil {
		cfg.Ranker = LeastLoaded{}
	}
	return &AutoScheduler{cfg: cfg, catalog: catalog}
}

// FirstSearchDay returns local midnight of the next StartWeekday strictly
// after from.
func (s *AutoScheduler) FirstSearchDay(from time.Time) time.Time {
	day := startOfDay(from.In(s.cfg.Location)).AddDate(0, 0, 1)
	for day.Weekday() != s.cfg.StartWeekday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// Window returns the full span the search may place bookings in.
func (s *AutoScheduler) Window(from time.Time) Interval {
	first := s.FirstSearchDay(from)
	return Interval{Start: first, End: first.AddDate(0, 0, s.cfg.HorizonDays)}
}

// Schedule proposes one earliest-available slot per required service.
// Services are handled independently: proposals of the same run never block
// each other since they are meant to be merged into one appointment.
func (s *AutoScheduler) Schedule(req AutoScheduleRequest) AutoScheduleResult {
	res := AutoScheduleResult{Proposals: []Proposal{}, Omitted: []Omission{}}

	for _, serviceID := range dedupIDs(req.ServiceIDs) {
		svc, ok := s.catalog.Service(serviceID)
		if !ok {
			res.Omitted = append(res.Omitted, Omission{ServiceID: serviceID, Reason: OmitUnknownService})
			continue
		}

		bookings := req.Bookings
		existing := activeForService(req.PatientAppointments, serviceID)
		if len(existing) > 0 {
			if !req.ReplaceExisting {
				res.Omitted = append(res.Omitted, Omission{ServiceID: serviceID, Reason: OmitAlreadyScheduled})
				continue
			}
			bookings = withoutIDs(bookings, existing)
		}

		p, found := s.search(svc, req.From, bookings)
		if !found {
			res.Omitted = append(res.Omitted, Omission{ServiceID: serviceID, Reason: OmitNoSlotFound})
			continue
		}
		res.Proposals = append(res.Proposals, p)
	}

	return res
}

func (s *AutoScheduler) search(svc Service, from time.Time, bookings []Appointment) (Proposal, bool) {
	duration := time.Duration(svc.DefaultDurationMinutes) * time.Minute
	if duration < MinDuration {
		duration = minSearchStep
	}
	step := duration
	if step < minSearchStep {
		step = minSearchStep
	}

	qualified := s.catalog.QualifiedProfessionals(svc.ID)
	proIDs := make([]uuid.UUID, 0, len(qualified))
	for _, p := range qualified {
		proIDs = append(proIDs, p.ID)
	}
	rooms := allRooms(s.catalog.Rooms)

	first := s.FirstSearchDay(from)
	for i := 0; i < s.cfg.HorizonDays; i++ {
		day := first.AddDate(0, 0, i)
		if s.closed(day) {
			continue
		}
		open := day.Add(s.cfg.DayStart)
		closeAt := day.Add(s.cfg.DayEnd)

		for t := open; !t.Add(duration).After(closeAt); {
			end := t.Add(duration)
			if IntersectsBlackout(t, end) {
				lunch := BlackoutWindow(t)
				if t.Before(lunch.End) {
					t = lunch.End
				} else {
					t = t.Add(step)
				}
				continue
			}
			if roomID, ok := freeRoom(t, end, rooms, proIDs, bookings); ok {
				return s.proposal(svc, day, t, end, roomID, qualified, bookings), true
			}
			t = t.Add(step)
		}
	}
	return Proposal{}, false
}

func freeRoom(start, end time.Time, rooms []Room, proIDs []uuid.UUID, bookings []Appointment) (*uuid.UUID, bool) {
	if len(rooms) == 0 {
		err := CheckConflict(Placement{Start: start, End: end, ProfessionalIDs: proIDs}, bookings)
		return nil, err == nil
	}
	for _, r := range rooms {
		id := r.ID
		err := CheckConflict(Placement{Start: start, End: end, RoomID: &id, ProfessionalIDs: proIDs}, bookings)
		if err == nil {
			return &id, true
		}
	}
	return nil, false
}

func (s *AutoScheduler) proposal(svc Service, day, start, end time.Time, roomID *uuid.UUID, qualified []Professional, bookings []Appointment) Proposal {
	var dayBookings []Appointment
	for _, a := range bookings {
		if SameDay(a.Start, day, s.cfg.Location) {
			dayBookings = append(dayBookings, a)
		}
	}

	defaults := map[uuid.UUID]bool{}
	for _, id := range s.cfg.Ranker.Defaults(day, qualified, dayBookings) {
		defaults[id] = true
	}

	p := Proposal{
		ServiceID:               svc.ID,
		ServiceName:             svc.Name,
		Start:                   start,
		End:                     end,
		DurationMinutes:         int(end.Sub(start) / time.Minute),
		RoomID:                  roomID,
		Candidates:              make([]Candidate, 0, len(qualified)),
		SelectedProfessionalIDs: []uuid.UUID{},
	}
	for _, pro := range qualified {
		isDefault := defaults[pro.ID]
		p.Candidates = append(p.Candidates, Candidate{
			ProfessionalID:     pro.ID,
			Name:               pro.Name,
			QualifiesAsDefault: isDefault,
		})
		if isDefault {
			p.SelectedProfessionalIDs = append(p.SelectedProfessionalIDs, pro.ID)
		}
	}
	return p
}

func (s *AutoScheduler) closed(day time.Time) bool {
	for _, wd := range s.cfg.ClosedDays {
		if day.Weekday() == wd {
			return true
		}
	}
	return false
}

func activeForService(appts []Appointment, serviceID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, a := range appts {
		if a.ServiceID == serviceID && a.Status != StatusCancelled {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func withoutIDs(appts []Appointment, ids []uuid.UUID) []Appointment {
	skip := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if _, ok := skip[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

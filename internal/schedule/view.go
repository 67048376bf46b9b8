package schedule

import (
	"sort"

	"github.com/google/uuid"
)

// LocalView is a caller-side copy of the bookings being displayed. Commands
// are applied optimistically after validation and reconciled against the
// authoritative commit result.
type LocalView struct {
	appts map[uuid.UUID]Appointment
}

func NewLocalView(appts []Appointment) *LocalView {
	v := &LocalView{appts: make(map[uuid.UUID]Appointment, len(appts))}
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		v.appts[a.ID] = a
	}
	return v
}

// Appointments returns the current view ordered by start time.
func (v *LocalView) Appointments() []Appointment {
	out := make([]Appointment, 0, len(v.appts))
	for _, a := range v.appts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

func (v *LocalView) Get(id uuid.UUID) (Appointment, bool) {
	a, ok := v.appts[id]
	return a, ok
}

// Execute validates cmd and, only when admissible, applies it to the view.
// A rejected command leaves the view untouched.
func (v *LocalView) Execute(caller CallerContext, cmd Command) error {
	if err := Validate(caller, cmd, v.Appointments()); err != nil {
		return err
	}
	if cmd.Kind == KindDelete {
		delete(v.appts, cmd.Before.ID)
		return nil
	}
	v.apply(cmd.Kind, cmd.After)
	return nil
}

// Reconcile settles an optimistic command with the store's verdict. On
// failure the view returns to cmd.Before; on success it adopts the committed
// record.
func (v *LocalView) Reconcile(cmd Command, committed *Appointment, commitErr error) {
	if commitErr != nil {
		switch cmd.Kind {
		case KindCreate:
			delete(v.appts, cmd.After.ID)
		default:
			v.appts[cmd.Before.ID] = cmd.Before
		}
		return
	}
	if committed != nil {
		if cmd.Kind == KindCreate && committed.ID != cmd.After.ID {
			delete(v.appts, cmd.After.ID)
		}
		v.apply(cmd.Kind, *committed)
	}
}

// Invalidate drops an appointment so it stops blocking placements.
func (v *LocalView) Invalidate(id uuid.UUID) {
	delete(v.appts, id)
}

func (v *LocalView) apply(kind CommandKind, a Appointment) {
	if kind == KindDelete || a.Status == StatusCancelled {
		delete(v.appts, a.ID)
		return
	}
	v.appts[a.ID] = a
}

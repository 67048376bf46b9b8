package schedule

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const professionalsNotePrefix = "Professionals assigned: "

// MergeProposals folds per-service proposals into one appointment: it starts
// at the earliest proposal, lasts as long as the longest one, and is staffed
// by the union of every selected professional. The room is kept only when
// all proposals agree on it.
func MergeProposals(patientID uuid.UUID, proposals []Proposal) (MergedProposal, error) {
	if len(proposals) == 0 {
		return MergedProposal{}, ErrNoProposals
	}

	ps := append([]Proposal(nil), proposals...)
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].Start.Equal(ps[j].Start) {
			return ps[i].Start.Before(ps[j].Start)
		}
		return lessID(ps[i].ServiceID, ps[j].ServiceID)
	})

	m := MergedProposal{
		PatientID: patientID,
		ServiceID: ps[0].ServiceID,
		Start:     ps[0].Start,
	}
	if allSameRoom(ps) {
		m.RoomID = ps[0].RoomID
	}

	var pros []uuid.UUID
	var names []string
	var notes []string
	seenName := map[string]bool{}
	for _, p := range ps {
		if p.DurationMinutes > m.DurationMinutes {
			m.DurationMinutes = p.DurationMinutes
		}
		m.ServiceIDs = append(m.ServiceIDs, p.ServiceID)
		if !seenName[p.ServiceName] {
			seenName[p.ServiceName] = true
			names = append(names, p.ServiceName)
		}
		pros = append(pros, p.SelectedProfessionalIDs...)
		if n := strings.TrimSpace(p.Notes); n != "" {
			notes = append(notes, n)
		}
	}
	m.ServiceIDs = dedupIDs(m.ServiceIDs)
	m.End = m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
	m.ProfessionalIDs = dedupIDs(pros)
	sortIDs(m.ProfessionalIDs)
	m.ServiceSummary = strings.Join(names, ", ")

	if summary := professionalSummary(ps, m.ProfessionalIDs); summary != "" {
		notes = append(notes, professionalsNotePrefix+summary)
	}
	m.Notes = strings.Join(notes, "\n")

	return m, nil
}

// professionalSummary renders "Name (Service A, Service B); Name (Service C)".
func professionalSummary(ps []Proposal, ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		var name string
		var services []string
		for _, p := range ps {
			for _, sel := range p.SelectedProfessionalIDs {
				if sel != id {
					continue
				}
				if name == "" {
					name = p.candidateName(id)
				}
				services = appendUnique(services, p.ServiceName)
			}
		}
		parts = append(parts, name+" ("+strings.Join(services, ", ")+")")
	}
	return strings.Join(parts, "; ")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func allSameRoom(ps []Proposal) bool {
	for _, p := range ps[1:] {
		if !sameRoom(ps[0].RoomID, p.RoomID) {
			return false
		}
	}
	return true
}

func sameRoom(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

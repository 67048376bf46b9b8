package schedule

import (
	"fmt"

	"github.com/google/uuid"
)

// Toggle adds or removes a professional from a proposal's selection.
func (p *Proposal) Toggle(id uuid.UUID) error {
	if !p.isCandidate(id) {
		return fmt.Errorf("%w: %s for %s", ErrProfessionalNotQualified, id, p.ServiceName)
	}
	for i, sel := range p.SelectedProfessionalIDs {
		if sel == id {
			p.SelectedProfessionalIDs = append(p.SelectedProfessionalIDs[:i:i], p.SelectedProfessionalIDs[i+1:]...)
			return nil
		}
	}
	p.SelectedProfessionalIDs = append(p.SelectedProfessionalIDs, id)
	return nil
}

// OnlyThis replaces the whole selection with a single professional.
func (p *Proposal) OnlyThis(id uuid.UUID) error {
	if !p.isCandidate(id) {
		return fmt.Errorf("%w: %s for %s", ErrProfessionalNotQualified, id, p.ServiceName)
	}
	p.SelectedProfessionalIDs = []uuid.UUID{id}
	return nil
}

// Select overwrites the selection, rejecting anyone not among the candidates.
func (p *Proposal) Select(ids []uuid.UUID) error {
	for _, id := range ids {
		if !p.isCandidate(id) {
			return fmt.Errorf("%w: %s for %s", ErrProfessionalNotQualified, id, p.ServiceName)
		}
	}
	p.SelectedProfessionalIDs = dedupIDs(ids)
	return nil
}

func (p *Proposal) isCandidate(id uuid.UUID) bool {
	for _, c := range p.Candidates {
		if c.ProfessionalID == id {
			return true
		}
	}
	return false
}

// ValidateSelection enforces that every proposal with candidates has at least
// one selected professional. Proposals without candidates may proceed
// unstaffed.
func ValidateSelection(proposals []Proposal) error {
	for _, p := range proposals {
		if len(p.Candidates) == 0 {
			continue
		}
		if len(p.SelectedProfessionalIDs) == 0 {
			return fmt.Errorf("%w: %s", ErrNoProfessionalSelected, p.ServiceName)
		}
		for _, id := range p.SelectedProfessionalIDs {
			if !p.isCandidate(id) {
				return fmt.Errorf("%w: %s for %s", ErrProfessionalNotQualified, id, p.ServiceName)
			}
		}
	}
	return nil
}

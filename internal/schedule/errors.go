package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrConflict                 = errors.New("scheduling conflict")
	ErrValidation               = errors.New("validation failed")
	ErrForbidden                = errors.New("caller is not allowed to perform this action")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrNoProfessionalSelected   = errors.New("at least one professional must be selected")
	ErrProfessionalNotQualified = errors.New("professional is not qualified for service")
	ErrNoProposals              = errors.New("no proposals to merge")
)

type ConflictReason string

const (
	ReasonBlackout  ConflictReason = "BLACKOUT"
	ReasonTooShort  ConflictReason = "TOO_SHORT"
	ReasonOverlap   ConflictReason = "OVERLAP"
	ReasonSlotTaken ConflictReason = "SLOT_TAKEN"
)

// ConflictError is returned whenever a placement is inadmissible.
type ConflictError struct {
	Reason ConflictReason
	// With is the booking that caused an OVERLAP or SLOT_TAKEN.
	With *uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.With != nil {
		return fmt.Sprintf("conflict %s with appointment %s", e.Reason, e.With)
	}
	return fmt.Sprintf("conflict %s", e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictReasonOf extracts the reason from a conflict error chain.
func ConflictReasonOf(err error) (ConflictReason, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason, true
	}
	return "", false
}

// ValidationError reports a missing or malformed input detected before any
// commit is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

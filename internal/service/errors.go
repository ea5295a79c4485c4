package service

import (
	"errors"
	"fmt"

	"academy/internal/availability"
	"academy/internal/policy"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrBookingTooLate = errors.New("lesson is too close to be booked")
	ErrLessonClosed   = errors.New("lesson is cancelled or completed")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// UnavailableError is returned when a requested lesson slot is taken or in the past.
type UnavailableError struct {
	Availability availability.Availability
}

func (e *UnavailableError) Error() string {
	if e.Availability.ConflictingLessonID != 0 {
		return fmt.Sprintf("slot unavailable: %s (lesson %d)", e.Availability.Reason, e.Availability.ConflictingLessonID)
	}
	return "slot unavailable: " + e.Availability.Reason
}

// PolicyError carries a cancellation decision that forbids the action.
type PolicyError struct {
	Decision policy.CancellationDecision
}

func (e *PolicyError) Error() string {
	return e.Decision.Reason()
}

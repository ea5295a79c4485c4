package recurrence

import (
	"time"

	"academy/internal/slots"
)

// MinSlotMinutes is the shortest recurring slot accepted.
const MinSlotMinutes = 60

// Kind classifies why a definition was rejected.
type Kind string

const (
	KindInvalidFormat   Kind = "INVALID_FORMAT"
	KindInvalidOrder    Kind = "INVALID_ORDER"
	KindTooShort        Kind = "TOO_SHORT"
	KindInvalidWeekdays Kind = "INVALID_WEEKDAYS"
	KindPastEndDate     Kind = "PAST_END_DATE"
	KindInvalidPattern  Kind = "INVALID_PATTERN"
)

// ValidationError is a rejected definition. It is a business outcome, not a fault.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Definition describes an instructor's recurring availability.
type Definition struct {
	StartTime         string     // "HH:MM"
	EndTime           string     // "HH:MM"
	Pattern           Pattern
	DaysOfWeek        WeekdaySet // WEEKLY only, 1 = Monday
	RecurrenceEndDate time.Time
}

// Validate checks def in a fixed order and reports the first failure.
// It returns nil for a valid definition and a *ValidationError otherwise.
func Validate(def Definition, now time.Time) error {
	start, errStart := slots.ParseClock(def.StartTime)
	end, errEnd := slots.ParseClock(def.EndTime)
	if errStart != nil || errEnd != nil {
		return &ValidationError{Kind: KindInvalidFormat, Reason: "start and end times must use the HH:MM format"}
	}

	if !start.Before(end) {
		return &ValidationError{Kind: KindInvalidOrder, Reason: "start time must be before end time"}
	}

	if slots.MinutesBetween(start, end) < MinSlotMinutes {
		return &ValidationError{Kind: KindTooShort, Reason: "slot must last at least 60 minutes"}
	}

	if def.Pattern == Weekly && !def.DaysOfWeek.Valid() {
		return &ValidationError{Kind: KindInvalidWeekdays, Reason: "weekly recurrence needs at least one weekday between 1 (Monday) and 7 (Sunday)"}
	}

	if !def.RecurrenceEndDate.After(now) {
		return &ValidationError{Kind: KindPastEndDate, Reason: "recurrence end date must be in the future"}
	}

	return nil
}

// InvalidPattern builds the rejection used when the pattern string cannot be decoded.
func InvalidPattern() *ValidationError {
	return &ValidationError{Kind: KindInvalidPattern, Reason: "pattern must be one of DAILY, WEEKLY, MONTHLY"}
}

// Occurrences expands a validated definition from the given date.
func (d Definition) Occurrences(from time.Time) (Result, error) {
	return Expand(from, d.RecurrenceEndDate, d.Pattern, d.DaysOfWeek)
}

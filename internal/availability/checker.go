// Package availability decides whether a candidate lesson slot is free for a user.
package availability

import (
	"fmt"
	"time"

	"academy/internal/model"
	"academy/internal/slots"
)

const (
	ReasonInPast   = "slot is in the past"
	ReasonOverlaps = "overlaps an existing lesson"
)

// Candidate is the slot a user wants to book.
type Candidate struct {
	Date      time.Time
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
}

// Availability is the verdict for a candidate. ConflictingLessonID is set on overlaps.
type Availability struct {
	Available           bool   `json:"available"`
	Reason              string `json:"reason,omitempty"`
	ConflictingLessonID int64  `json:"conflicting_lesson_id,omitempty"`
}

// IsSlotAvailable checks the candidate against now and the user's existing lessons.
// Cancelled lessons and lessons on other dates are ignored. Intervals are half-open,
// so back-to-back lessons do not conflict.
func IsSlotAvailable(now time.Time, candidate Candidate, existing []model.ScheduledLesson) (Availability, error) {
	start, err := slots.ParseClock(candidate.StartTime)
	if err != nil {
		return Availability{}, fmt.Errorf("candidate start: %w", err)
	}
	end, err := slots.ParseClock(candidate.EndTime)
	if err != nil {
		return Availability{}, fmt.Errorf("candidate end: %w", err)
	}
	if !start.Before(end) {
		return Availability{}, fmt.Errorf("candidate %s-%s: start must be before end", candidate.StartTime, candidate.EndTime)
	}

	if start.On(candidate.Date).Before(now) {
		return Availability{Available: false, Reason: ReasonInPast}, nil
	}

	for i := range existing {
		lesson := &existing[i]
		if !lesson.IsActive() || !slots.SameDate(lesson.Date, candidate.Date) {
			continue
		}

		exStart, err := slots.ParseClock(lesson.StartTime)
		if err != nil {
			return Availability{}, fmt.Errorf("lesson %d start: %w", lesson.ID, err)
		}
		exEnd, err := slots.ParseClock(lesson.EndTime)
		if err != nil {
			return Availability{}, fmt.Errorf("lesson %d end: %w", lesson.ID, err)
		}

		if start.Minutes() < exEnd.Minutes() && end.Minutes() > exStart.Minutes() {
			return Availability{Available: false, Reason: ReasonOverlaps, ConflictingLessonID: lesson.ID}, nil
		}
	}

	return Availability{Available: true}, nil
}

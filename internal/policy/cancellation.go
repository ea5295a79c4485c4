package policy

import "time"

// Outcome is the verdict of a cancellation check.
type Outcome string

const (
	OutcomeAllowed Outcome = "ALLOWED"
	OutcomeLate    Outcome = "LATE"
	OutcomePast    Outcome = "PAST"
)

const (
	ReasonPastLesson       = "past lesson"
	ReasonLateCancellation = "late cancellation — hour will be deducted unless justified as urgent"
)

// CancellationDecision is either Allowed(hours) or Denied(reason, hours).
type CancellationDecision struct {
	Outcome          Outcome
	HoursUntilLesson float64
}

// Allowed reports whether the lesson can be cancelled without penalty.
func (d CancellationDecision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// Reason is empty for allowed cancellations.
func (d CancellationDecision) Reason() string {
	switch d.Outcome {
	case OutcomePast:
		return ReasonPastLesson
	case OutcomeLate:
		return ReasonLateCancellation
	default:
		return ""
	}
}

// CanCancelLesson applies the notice rule to a lesson starting at startTime on lessonDate.
func (p *Policy) CanCancelLesson(lessonDate time.Time, startTime string) (CancellationDecision, error) {
	at, err := p.LessonTime(lessonDate, startTime)
	if err != nil {
		return CancellationDecision{}, err
	}

	left := at.Sub(p.now())
	hours := left.Hours()

	switch {
	case left < 0:
		return CancellationDecision{Outcome: OutcomePast, HoursUntilLesson: hours}, nil
	case left < p.cfg.CancellationNotice:
		return CancellationDecision{Outcome: OutcomeLate, HoursUntilLesson: hours}, nil
	default:
		return CancellationDecision{Outcome: OutcomeAllowed, HoursUntilLesson: hours}, nil
	}
}

// ShouldDeductHour decides whether cancelling costs the student an hour.
// Timely cancellations are free; late ones are free only when the urgency
// claim was made and validated by staff.
func (p *Policy) ShouldDeductHour(lessonDate time.Time, startTime string, isUrgent, urgencyValidated bool) (bool, error) {
	decision, err := p.CanCancelLesson(lessonDate, startTime)
	if err != nil {
		return false, err
	}
	if decision.Allowed() {
		return false, nil
	}
	if isUrgent && urgencyValidated {
		return false, nil
	}
	return true, nil
}

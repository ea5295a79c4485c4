package policy

// ConfirmationStatus is the two-party confirmation state of a lesson.
type ConfirmationStatus string

const (
	BothConfirmed      ConfirmationStatus = "BOTH_CONFIRMED"
	NoneConfirmed      ConfirmationStatus = "NONE_CONFIRMED"
	AwaitingInstructor ConfirmationStatus = "AWAITING_INSTRUCTOR"
	AwaitingStudent    ConfirmationStatus = "AWAITING_STUDENT"
)

var confirmationReasons = map[ConfirmationStatus]string{
	BothConfirmed:      "lesson confirmed by student and instructor",
	NoneConfirmed:      "waiting for student and instructor confirmation",
	AwaitingInstructor: "waiting for instructor confirmation",
	AwaitingStudent:    "waiting for student confirmation",
}

// CanConfirmLesson folds both confirmation flags into a status.
func CanConfirmLesson(studentConfirmed, instructorConfirmed bool) ConfirmationStatus {
	switch {
	case studentConfirmed && instructorConfirmed:
		return BothConfirmed
	case studentConfirmed:
		return AwaitingInstructor
	case instructorConfirmed:
		return AwaitingStudent
	default:
		return NoneConfirmed
	}
}

// CanConfirm is true only when both parties confirmed.
func (s ConfirmationStatus) CanConfirm() bool {
	return s == BothConfirmed
}

// Reason is a human readable description of the status.
func (s ConfirmationStatus) Reason() string {
	return confirmationReasons[s]
}

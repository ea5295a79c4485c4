package model

import (
	"time"

	"academy/internal/slots"
)

// LessonStatus is the lifecycle state of a scheduled one-to-one lesson.
type LessonStatus string

const (
	LessonBooked    LessonStatus = "BOOKED"
	LessonConfirmed LessonStatus = "CONFIRMED"
	LessonCancelled LessonStatus = "CANCELLED"
	LessonCompleted LessonStatus = "COMPLETED"
)

// ScheduledLesson is a booked instructor/student lesson.
type ScheduledLesson struct {
	ID                  int64        `json:"id"`
	StudentID           int64        `json:"student_id"`
	InstructorID        int64        `json:"instructor_id"`
	Date                time.Time    `json:"date"`
	StartTime           string       `json:"start_time"` // "HH:MM"
	EndTime             string       `json:"end_time"`   // "HH:MM"
	Status              LessonStatus `json:"status"`
	StudentConfirmed    bool         `json:"student_confirmed"`
	InstructorConfirmed bool         `json:"instructor_confirmed"`
	IsUrgent            bool         `json:"is_urgent"`
	UrgencyReason       string       `json:"urgency_reason,omitempty"`
	UrgencyValidated    bool         `json:"urgency_validated"`
	HourDeducted        bool         `json:"hour_deducted"`
	CancellationReason  string       `json:"cancellation_reason,omitempty"`
	CancelledBy         int64        `json:"cancelled_by,omitempty"`
	CancelledAt         *time.Time   `json:"cancelled_at,omitempty"`
	ReminderSent        bool         `json:"reminder_sent"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsActive is true for lessons that still occupy their time slot.
func (l *ScheduledLesson) IsActive() bool {
	return l.Status != LessonCancelled
}

// StartAt is the lesson start on its date, in the date's location.
func (l *ScheduledLesson) StartAt() (time.Time, error) {
	return slots.ParseTimeOnDate(l.Date, l.StartTime)
}

// EndAt is the lesson end on its date, in the date's location.
func (l *ScheduledLesson) EndAt() (time.Time, error) {
	return slots.ParseTimeOnDate(l.Date, l.EndTime)
}

// Involves reports whether userID is the student or the instructor.
func (l *ScheduledLesson) Involves(userID int64) bool {
	return l.StudentID == userID || l.InstructorID == userID
}

// Counterpart returns the other participant of the lesson.
func (l *ScheduledLesson) Counterpart(userID int64) int64 {
	if l.StudentID == userID {
		return l.InstructorID
	}
	return l.StudentID
}

// Reminder adapter methods.

func (l *ScheduledLesson) GetID() int64         { return l.ID }
func (l *ScheduledLesson) GetUserID() int64     { return l.StudentID }
func (l *ScheduledLesson) IsReminderSent() bool { return l.ReminderSent }

func (l *ScheduledLesson) GetStartTime() time.Time {
	at, err := l.StartAt()
	if err != nil {
		return l.Date
	}
	return at
}

// AvailabilitySlot is one concrete occurrence of an instructor's recurring availability.
type AvailabilitySlot struct {
	ID           int64     `json:"id"`
	InstructorID int64     `json:"instructor_id"`
	SeriesID     string    `json:"series_id"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Pattern      string    `json:"pattern"`
	CreatedAt    time.Time `json:"created_at"`
}

package reminders

import (
	"context"
	"time"
)

// ReminderType defines the type of reminder.
type ReminderType string

const (
	ReminderTypeBeforeLesson ReminderType = "before_lesson"
	ReminderTypeCancellation ReminderType = "cancellation"
)

// ReminderStatus defines the status of a reminder.
type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "pending"
	ReminderStatusSent    ReminderStatus = "sent"
	ReminderStatusFailed  ReminderStatus = "failed"
)

// Reminder is the delivery record of one reminder for one lesson.
type Reminder struct {
	ID           int64
	UserID       int64
	LessonID     int64
	ReminderType ReminderType
	ScheduledAt  time.Time
	SentAt       *time.Time
	Status       ReminderStatus
	RetryCount   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReminderRepository provides access to reminders storage.
type ReminderRepository interface {
	// CreateReminder creates a new reminder and fills its ID.
	CreateReminder(ctx context.Context, r *Reminder) error

	// UpdateReminder updates status, retry count and error of an existing reminder.
	UpdateReminder(ctx context.Context, r *Reminder) error

	// GetReminderByKey returns the reminder for (user, lesson, type) or nil when none exists.
	GetReminderByKey(ctx context.Context, userID, lessonID int64, reminderType ReminderType) (*Reminder, error)

	// CountPendingReminders returns the count of pending reminders.
	CountPendingReminders(ctx context.Context) (int64, error)

	// DeleteOldReminders removes sent and failed reminders last updated before the cutoff.
	DeleteOldReminders(ctx context.Context, before time.Time) (int64, error)
}

// Lesson is a scheduled lesson that may need a reminder. GetUserID is the recipient.
type Lesson interface {
	GetID() int64
	GetUserID() int64
	GetStartTime() time.Time
	IsReminderSent() bool
}

// LessonStore provides access to lessons for the reminder service.
type LessonStore interface {
	// GetUpcomingLessons returns lessons starting within the given duration
	// that haven't had reminders sent yet.
	GetUpcomingLessons(ctx context.Context, within time.Duration) ([]Lesson, error)

	// MarkReminderSent marks a lesson as having had its reminder sent.
	MarkReminderSent(ctx context.Context, lessonID int64) error
}

// UserSettingsStore provides access to user reminder settings.
type UserSettingsStore interface {
	// GetUserSettings returns reminder settings for a user.
	// If no settings exist, returns default settings (reminders enabled, 24h before).
	GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error)

	// MaxReminderHoursBefore returns the largest lead time among users with reminders
	// enabled, or 0 when nobody has a custom setting.
	MaxReminderHoursBefore(ctx context.Context) (int, error)
}

// UserSettings holds user preferences for reminders.
type UserSettings struct {
	UserID              int64
	RemindersEnabled    bool
	ReminderHoursBefore int
}

// DefaultUserSettings returns default settings for a user.
func DefaultUserSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:              userID,
		RemindersEnabled:    true,
		ReminderHoursBefore: 24,
	}
}

// Notifier sends reminder notifications to users.
type Notifier interface {
	SendReminder(ctx context.Context, userID int64, lesson Lesson) error
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

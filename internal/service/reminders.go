package service

import (
	"context"
	"time"

	"academy/internal/db"
	"academy/internal/model"
	"academy/shared/reminders"
)

// UpcomingLessonRepository is the lesson storage the reminder job reads.
type UpcomingLessonRepository interface {
	GetUpcomingLessons(ctx context.Context, now time.Time, within time.Duration) ([]model.ScheduledLesson, error)
	MarkReminderSent(ctx context.Context, lessonID int64) error
	GetUserSettings(ctx context.Context, userID int64) (*db.UserSettings, error)
	MaxReminderHoursBefore(ctx context.Context) (int, error)
}

// ReminderStore adapts lesson storage to the reminder service.
// It implements reminders.LessonStore and reminders.UserSettingsStore.
type ReminderStore struct {
	repo UpcomingLessonRepository
	now  func() time.Time
}

func NewReminderStore(repo UpcomingLessonRepository) *ReminderStore {
	return &ReminderStore{repo: repo, now: time.Now}
}

func (s *ReminderStore) GetUpcomingLessons(ctx context.Context, within time.Duration) ([]reminders.Lesson, error) {
	lessons, err := s.repo.GetUpcomingLessons(ctx, s.now(), within)
	if err != nil {
		return nil, err
	}
	out := make([]reminders.Lesson, 0, len(lessons))
	for i := range lessons {
		out = append(out, &lessons[i])
	}
	return out, nil
}

func (s *ReminderStore) MarkReminderSent(ctx context.Context, lessonID int64) error {
	return s.repo.MarkReminderSent(ctx, lessonID)
}

func (s *ReminderStore) GetUserSettings(ctx context.Context, userID int64) (*reminders.UserSettings, error) {
	us, err := s.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &reminders.UserSettings{
		UserID:              us.UserID,
		RemindersEnabled:    us.RemindersEnabled,
		ReminderHoursBefore: us.ReminderHoursBefore,
	}, nil
}

func (s *ReminderStore) MaxReminderHoursBefore(ctx context.Context) (int, error) {
	return s.repo.MaxReminderHoursBefore(ctx)
}

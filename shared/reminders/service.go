package reminders

import (
	"context"
	"sync"
	"time"
)

// Config holds configuration for the reminder service.
type Config struct {
	// DefaultHoursBefore is the default number of hours before a lesson
	// to send a reminder if user has no custom setting.
	// Default: 24 hours.
	DefaultHoursBefore int

	// MaxConcurrentNotifications limits parallel notification sends.
	// Default: 10.
	MaxConcurrentNotifications int

	// RunTimeout bounds one check pass.
	// Default: 5 minutes.
	RunTimeout time.Duration

	// CleanupRetention is how long sent and failed reminders are kept.
	// It is never shorter than the look-ahead window.
	// Default: 7 days.
	CleanupRetention time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultHoursBefore:         24,
		MaxConcurrentNotifications: 10,
		RunTimeout:                 5 * time.Minute,
		CleanupRetention:           7 * 24 * time.Hour,
	}
}

// Service finds lessons that are due for a reminder and hands them to the sender.
// It is driven from outside (cron) through Run.
type Service struct {
	config   *Config
	lessons  LessonStore
	settings UserSettingsStore
	repo     ReminderRepository
	sender   *ReminderSender
	metrics  *Metrics
	logger   Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewService creates a new reminder service.
func NewService(
	config *Config,
	lessons LessonStore,
	settings UserSettingsStore,
	repo ReminderRepository,
	sender *ReminderSender,
	metrics *Metrics,
	logger Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultHoursBefore == 0 {
		config.DefaultHoursBefore = 24
	}
	if config.MaxConcurrentNotifications == 0 {
		config.MaxConcurrentNotifications = 10
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = 5 * time.Minute
	}
	if config.CleanupRetention == 0 {
		config.CleanupRetention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = nopLogger{}
	}

	return &Service{
		config:   config,
		lessons:  lessons,
		settings: settings,
		repo:     repo,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one reminder pass followed by cleanup. Overlapping calls are skipped.
func (s *Service) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("reminder pass already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()
	s.RunOnce(ctx)
	if _, err := s.Cleanup(ctx); err != nil {
		s.logger.Error("Failed to clean up reminders", "error", err)
	}
}

// lookAhead is the widest reminder window of any user plus one hour for lessons that
// start right after the window edge.
func (s *Service) lookAhead(ctx context.Context) time.Duration {
	hours := s.config.DefaultHoursBefore
	longest, err := s.settings.MaxReminderHoursBefore(ctx)
	if err != nil {
		s.logger.Error("Failed to get longest reminder setting", "error", err)
	} else if longest > hours {
		hours = longest
	}
	return time.Duration(hours+1) * time.Hour
}

// Cleanup deletes sent and failed reminders older than the retention period.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	retention := s.config.CleanupRetention
	if window := s.lookAhead(ctx); window > retention {
		retention = window
	}

	deleted, err := s.repo.DeleteOldReminders(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.IncCleanedUp(deleted)
		}
		s.logger.Info("Cleaned up old reminders", "deleted", deleted)
	}
	return deleted, nil
}

// RunOnce checks upcoming lessons and sends the reminders that are due.
// It returns the number of lessons handed to the sender.
func (s *Service) RunOnce(ctx context.Context) int {
	lessons, err := s.lessons.GetUpcomingLessons(ctx, s.lookAhead(ctx))
	if err != nil {
		s.logger.Error("Failed to get upcoming lessons", "error", err)
		return 0
	}

	if s.metrics != nil {
		if pending, err := s.repo.CountPendingReminders(ctx); err == nil {
			s.metrics.SetQueueSize(pending)
		}
	}

	if len(lessons) == 0 {
		return 0
	}
	s.logger.Debug("Found lessons to check for reminders", "count", len(lessons))

	sem := make(chan struct{}, s.config.MaxConcurrentNotifications)
	var wg sync.WaitGroup
	dispatched := 0

	for _, lesson := range lessons {
		if lesson.IsReminderSent() {
			continue
		}

		settings, err := s.settings.GetUserSettings(ctx, lesson.GetUserID())
		if err != nil {
			s.logger.Error("Failed to get user settings",
				"user_id", lesson.GetUserID(),
				"error", err,
			)
			settings = DefaultUserSettings(lesson.GetUserID())
		}
		if !settings.RemindersEnabled {
			continue
		}

		hoursBefore := settings.ReminderHoursBefore
		if hoursBefore <= 0 {
			hoursBefore = s.config.DefaultHoursBefore
		}
		reminderTime := lesson.GetStartTime().Add(-time.Duration(hoursBefore) * time.Hour)
		if s.now().Before(reminderTime) {
			continue
		}

		r, err := s.claim(ctx, lesson, reminderTime)
		if err != nil {
			s.logger.Error("Failed to record reminder",
				"lesson_id", lesson.GetID(),
				"error", err,
			)
			continue
		}
		if r == nil {
			continue
		}

		dispatched++
		wg.Add(1)
		sem <- struct{}{}

		go func(r *Reminder, l Lesson) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.sender.SendWithRetry(ctx, r, l); err != nil {
				s.logger.Error("Failed to send reminder",
					"lesson_id", l.GetID(),
					"user_id", l.GetUserID(),
					"error", err,
				)
			}
		}(r, lesson)
	}

	wg.Wait()
	return dispatched
}

// claim returns the pending reminder record for the lesson, creating it when missing.
// It returns nil when the reminder was already sent or failed for good.
func (s *Service) claim(ctx context.Context, lesson Lesson, scheduledAt time.Time) (*Reminder, error) {
	existing, err := s.repo.GetReminderByKey(ctx, lesson.GetUserID(), lesson.GetID(), ReminderTypeBeforeLesson)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status != ReminderStatusPending {
			return nil, nil
		}
		return existing, nil
	}

	r := &Reminder{
		UserID:       lesson.GetUserID(),
		LessonID:     lesson.GetID(),
		ReminderType: ReminderTypeBeforeLesson,
		ScheduledAt:  scheduledAt,
		Status:       ReminderStatusPending,
	}
	if err := s.repo.CreateReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

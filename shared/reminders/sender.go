package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return 0
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds to wait before retrying (for 429 errors)
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsTelegramError checks if the error is a TelegramError.
func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

// RateLimiterConfig configures the outgoing message limiter.
type RateLimiterConfig struct {
	// Rate is messages per second.
	Rate float64
	// Burst is the bucket size.
	Burst int
}

// DefaultRateLimiterConfig stays below Telegram's global bot limit.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Rate: 20, Burst: 30}
}

// ReminderSender handles sending reminders with rate limiting and retry logic.
type ReminderSender struct {
	notifier    Notifier
	repo        ReminderRepository
	lessons     LessonStore
	limiter     *rate.Limiter
	retryConfig RetryConfig
	metrics     *Metrics
	logger      Logger
}

// ReminderSenderConfig holds configuration for the sender.
type ReminderSenderConfig struct {
	RateLimiter RateLimiterConfig
	Retry       RetryConfig
}

// DefaultReminderSenderConfig returns the default configuration.
func DefaultReminderSenderConfig() ReminderSenderConfig {
	return ReminderSenderConfig{
		RateLimiter: DefaultRateLimiterConfig(),
		Retry:       DefaultRetryConfig(),
	}
}

// NewReminderSender creates a new reminder sender. metrics may be nil.
func NewReminderSender(
	notifier Notifier,
	repo ReminderRepository,
	lessons LessonStore,
	config ReminderSenderConfig,
	metrics *Metrics,
	logger Logger,
) *ReminderSender {
	if config.RateLimiter.Rate <= 0 {
		config.RateLimiter = DefaultRateLimiterConfig()
	}
	if config.RateLimiter.Burst <= 0 {
		config.RateLimiter.Burst = 1
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &ReminderSender{
		notifier:    notifier,
		repo:        repo,
		lessons:     lessons,
		limiter:     rate.NewLimiter(rate.Limit(config.RateLimiter.Rate), config.RateLimiter.Burst),
		retryConfig: config.Retry,
		metrics:     metrics,
		logger:      logger,
	}
}

// SendWithRetry sends a reminder with retry logic and rate limiting.
func (s *ReminderSender) SendWithRetry(ctx context.Context, r *Reminder, lesson Lesson) error {
	if s.limiter.Tokens() < 1 && s.metrics != nil {
		s.metrics.IncRateLimitWaits()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	maxRetries := s.retryConfig.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		started := time.Now()
		err := s.notifier.SendReminder(ctx, r.UserID, lesson)
		if s.metrics != nil {
			s.metrics.ObserveSendDuration(time.Since(started).Seconds())
		}
		if err == nil {
			return s.markAsSent(ctx, r)
		}

		lastErr = err

		if tgErr, ok := IsTelegramError(err); ok {
			switch tgErr.Code {
			case 429:
				waitTime := time.Duration(tgErr.RetryAfter) * time.Second
				if waitTime == 0 {
					waitTime = s.retryConfig.delay(attempt)
				}
				s.logger.Info("rate limited by Telegram, waiting",
					"retry_after", waitTime,
					"attempt", attempt,
					"reminder_id", r.ID)

				if err := sleep(ctx, waitTime); err != nil {
					return err
				}
				continue

			case 403: // bot blocked by user
				s.logger.Info("user blocked bot",
					"user_id", r.UserID,
					"reminder_id", r.ID)
				return s.markAsFailed(ctx, r, "user_blocked")

			case 400:
				s.logger.Error("bad request to Telegram",
					"error", err,
					"reminder_id", r.ID)
				return s.markAsFailed(ctx, r, "bad_request")
			}
		}

		if attempt < maxRetries {
			delay := s.retryConfig.delay(attempt)
			r.RetryCount++
			if s.metrics != nil {
				s.metrics.IncRetries()
			}
			s.logger.Info("retrying reminder send",
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"delay", delay,
				"error", err)

			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	s.logger.Error("max retries exceeded for reminder",
		"reminder_id", r.ID,
		"user_id", r.UserID,
		"error", lastErr)

	return s.markAsFailed(ctx, r, "max_retries_exceeded")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markAsSent records delivery on the reminder and on the lesson.
func (s *ReminderSender) markAsSent(ctx context.Context, r *Reminder) error {
	now := time.Now()
	r.Status = ReminderStatusSent
	r.SentAt = &now
	r.UpdatedAt = now

	if err := s.repo.UpdateReminder(ctx, r); err != nil {
		s.logger.Error("failed to mark reminder as sent",
			"reminder_id", r.ID,
			"error", err)
		return err
	}
	if s.lessons != nil {
		if err := s.lessons.MarkReminderSent(ctx, r.LessonID); err != nil {
			// The notification went out; the reminder row already prevents a resend.
			s.logger.Error("failed to flag lesson reminder",
				"lesson_id", r.LessonID,
				"error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.IncSent(string(ReminderStatusSent), r.ReminderType)
	}

	s.logger.Info("reminder sent successfully",
		"reminder_id", r.ID,
		"user_id", r.UserID,
		"lesson_id", r.LessonID)

	return nil
}

// markAsFailed marks a reminder as failed.
func (s *ReminderSender) markAsFailed(ctx context.Context, r *Reminder, reason string) error {
	r.Status = ReminderStatusFailed
	r.LastError = reason
	r.UpdatedAt = time.Now()

	if err := s.repo.UpdateReminder(ctx, r); err != nil {
		s.logger.Error("failed to mark reminder as failed",
			"reminder_id", r.ID,
			"error", err)
		return err
	}
	if s.metrics != nil {
		s.metrics.IncSent(string(ReminderStatusFailed), r.ReminderType)
	}

	s.logger.Info("reminder marked as failed",
		"reminder_id", r.ID,
		"user_id", r.UserID,
		"reason", reason)

	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/shared/reminders"
)

// CreateReminder implements reminders.ReminderRepository.
func (db *DB) CreateReminder(ctx context.Context, r *reminders.Reminder) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO lesson_reminders (user_id, lesson_id, reminder_type, scheduled_at, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.LessonID, string(r.ReminderType), r.ScheduledAt, string(r.Status), r.RetryCount, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create reminder: %w", err)
	}
	r.ID, err = res.LastInsertId()
	r.CreatedAt, r.UpdatedAt = now, now
	return err
}

// UpdateReminder implements reminders.ReminderRepository.
func (db *DB) UpdateReminder(ctx context.Context, r *reminders.Reminder) error {
	var lastError any
	if r.LastError != "" {
		lastError = r.LastError
	}
	res, err := db.ExecContext(ctx, `
		UPDATE lesson_reminders
		SET status = ?, sent_at = ?, retry_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), r.SentAt, r.RetryCount, lastError, time.Now(), r.ID)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetReminderByKey implements reminders.ReminderRepository. It returns nil, nil when the
// reminder does not exist.
func (db *DB) GetReminderByKey(ctx context.Context, userID, lessonID int64, reminderType reminders.ReminderType) (*reminders.Reminder, error) {
	var (
		r                    reminders.Reminder
		rType, status        string
		sentAt               sql.NullTime
		lastError            sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, lesson_id, reminder_type, scheduled_at, sent_at, status, retry_count, last_error, created_at, updated_at
		FROM lesson_reminders
		WHERE user_id = ? AND lesson_id = ? AND reminder_type = ?`,
		userID, lessonID, string(reminderType),
	).Scan(&r.ID, &r.UserID, &r.LessonID, &rType, &r.ScheduledAt, &sentAt, &status, &r.RetryCount, &lastError, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	r.ReminderType = reminders.ReminderType(rType)
	r.Status = reminders.ReminderStatus(status)
	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}
	r.LastError = lastError.String
	r.CreatedAt = createdAt.Time
	r.UpdatedAt = updatedAt.Time
	return &r, nil
}

// CountPendingReminders implements reminders.ReminderRepository.
func (db *DB) CountPendingReminders(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_reminders WHERE status = ?`, string(reminders.ReminderStatusPending),
	).Scan(&n)
	return n, err
}

// DeleteOldReminders implements reminders.ReminderRepository. Timestamps are compared
// through julianday because stored values carry their own UTC offset.
func (db *DB) DeleteOldReminders(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM lesson_reminders
		WHERE status IN (?, ?) AND julianday(updated_at) < julianday(?)`,
		string(reminders.ReminderStatusSent), string(reminders.ReminderStatusFailed), before)
	if err != nil {
		return 0, fmt.Errorf("delete old reminders: %w", err)
	}
	return res.RowsAffected()
}

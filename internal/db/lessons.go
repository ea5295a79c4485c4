package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/internal/model"
	"academy/internal/slots"
)

const lessonColumns = `id, student_id, instructor_id, date, start_time, end_time, status,
	student_confirmed, instructor_confirmed, is_urgent, urgency_reason, urgency_validated,
	hour_deducted, cancellation_reason, cancelled_by, cancelled_at, reminder_sent,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) scanLesson(row rowScanner) (*model.ScheduledLesson, error) {
	var (
		l                   model.ScheduledLesson
		date, status        string
		urgencyReason       sql.NullString
		cancellationReason  sql.NullString
		cancelledBy         sql.NullInt64
		cancelledAt         sql.NullTime
		createdAt, updateAt sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.StudentID, &l.InstructorID, &date, &l.StartTime, &l.EndTime, &status,
		&l.StudentConfirmed, &l.InstructorConfirmed, &l.IsUrgent, &urgencyReason, &l.UrgencyValidated,
		&l.HourDeducted, &cancellationReason, &cancelledBy, &cancelledAt, &l.ReminderSent,
		&createdAt, &updateAt,
	)
	if err != nil {
		return nil, err
	}

	l.Date, err = db.parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("lesson %d date: %w", l.ID, err)
	}
	l.Status = model.LessonStatus(status)
	l.UrgencyReason = urgencyReason.String
	l.CancellationReason = cancellationReason.String
	l.CancelledBy = cancelledBy.Int64
	if cancelledAt.Valid {
		t := cancelledAt.Time
		l.CancelledAt = &t
	}
	l.CreatedAt = createdAt.Time
	l.UpdatedAt = updateAt.Time
	return &l, nil
}

func (db *DB) queryLessons(ctx context.Context, q querier, query string, args ...any) ([]model.ScheduledLesson, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.ScheduledLesson
	for rows.Next() {
		l, err := db.scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, rows.Err()
}

func (db *DB) getLesson(ctx context.Context, q querier, id int64) (*model.ScheduledLesson, error) {
	row := q.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM scheduled_lessons WHERE id = ?`, id)
	l, err := db.scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson %d: %w", id, err)
	}
	return l, nil
}

// GetLesson returns a lesson by id.
func (db *DB) GetLesson(ctx context.Context, id int64) (*model.ScheduledLesson, error) {
	return db.getLesson(ctx, db.DB, id)
}

// ListLessonsForUserOnDate returns every lesson, cancelled ones included, where the user is
// student or instructor on the given date.
func (db *DB) ListLessonsForUserOnDate(ctx context.Context, userID int64, date time.Time) ([]model.ScheduledLesson, error) {
	return db.queryLessons(ctx, db.DB, `
		SELECT `+lessonColumns+` FROM scheduled_lessons
		WHERE date = ? AND (student_id = ? OR instructor_id = ?)
		ORDER BY start_time`, db.formatDate(date), userID, userID)
}

// ListLessonsForUser returns a user's lessons from the given date on.
func (db *DB) ListLessonsForUser(ctx context.Context, userID int64, from time.Time) ([]model.ScheduledLesson, error) {
	return db.queryLessons(ctx, db.DB, `
		SELECT `+lessonColumns+` FROM scheduled_lessons
		WHERE date >= ? AND (student_id = ? OR instructor_id = ?)
		ORDER BY date, start_time`, db.formatDate(from), userID, userID)
}

// CreateLessonChecked inserts a lesson after verify accepted the active lessons of both
// participants on that date. Both steps run in one write transaction so two bookings of
// the same slot cannot both pass the check.
func (db *DB) CreateLessonChecked(ctx context.Context, l *model.ScheduledLesson, verify func(existing []model.ScheduledLesson) error) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := db.queryLessons(ctx, tx, `
			SELECT `+lessonColumns+` FROM scheduled_lessons
			WHERE date = ? AND status != ?
			  AND (student_id IN (?, ?) OR instructor_id IN (?, ?))`,
			db.formatDate(l.Date), string(model.LessonCancelled),
			l.StudentID, l.InstructorID, l.StudentID, l.InstructorID)
		if err != nil {
			return fmt.Errorf("load lessons: %w", err)
		}

		if verify != nil {
			if err := verify(existing); err != nil {
				return err
			}
		}

		if l.Status == "" {
			l.Status = model.LessonBooked
		}
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_lessons (student_id, instructor_id, date, start_time, end_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.StudentID, l.InstructorID, db.formatDate(l.Date), l.StartTime, l.EndTime, string(l.Status), now, now)
		if err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
		l.ID, err = res.LastInsertId()
		l.CreatedAt, l.UpdatedAt = now, now
		return err
	})
}

// CancelParams describes a cancellation.
type CancelParams struct {
	LessonID      int64
	CancelledBy   int64
	Reason        string
	IsUrgent      bool
	UrgencyReason string
	DeductHour    bool
	At            time.Time
}

// CancelLesson marks a lesson cancelled and, when asked, takes one hour from the
// student's balance in the same transaction.
func (db *DB) CancelLesson(ctx context.Context, p CancelParams) (*model.ScheduledLesson, error) {
	var out *model.ScheduledLesson
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		l, err := db.getLesson(ctx, tx, p.LessonID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE scheduled_lessons
			SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?,
			    is_urgent = ?, urgency_reason = ?, hour_deducted = ?, updated_at = ?
			WHERE id = ? AND status IN (?, ?)`,
			string(model.LessonCancelled), p.Reason, p.CancelledBy, p.At,
			p.IsUrgent, p.UrgencyReason, p.DeductHour, p.At,
			p.LessonID, string(model.LessonBooked), string(model.LessonConfirmed))
		if err != nil {
			return fmt.Errorf("cancel lesson: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConcurrentModification
		}

		if p.DeductHour {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET hour_balance = hour_balance - 1, updated_at = ? WHERE id = ?`,
				p.At, l.StudentID); err != nil {
				return fmt.Errorf("deduct hour: %w", err)
			}
		}

		out, err = db.getLesson(ctx, tx, p.LessonID)
		return err
	})
	return out, err
}

// ValidateUrgency records the staff decision on an urgency claim. A validated claim
// refunds a deducted hour. It reports whether an hour was refunded.
func (db *DB) ValidateUrgency(ctx context.Context, lessonID int64, validated bool) (bool, error) {
	refunded := false
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		l, err := db.getLesson(ctx, tx, lessonID)
		if err != nil {
			return err
		}
		if l.Status != model.LessonCancelled || !l.IsUrgent {
			return ErrConcurrentModification
		}

		refund := validated && l.HourDeducted
		now := time.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_lessons
			SET urgency_validated = ?, hour_deducted = CASE WHEN ? THEN 0 ELSE hour_deducted END, updated_at = ?
			WHERE id = ?`, validated, refund, now, lessonID); err != nil {
			return fmt.Errorf("update urgency: %w", err)
		}

		if refund {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET hour_balance = hour_balance + 1, updated_at = ? WHERE id = ?`,
				now, l.StudentID); err != nil {
				return fmt.Errorf("refund hour: %w", err)
			}
			refunded = true
		}
		return nil
	})
	return refunded, err
}

// SetConfirmation sets one party's confirmation flag. The lesson moves to CONFIRMED once
// both flags are set.
func (db *DB) SetConfirmation(ctx context.Context, lessonID int64, asStudent bool) (*model.ScheduledLesson, error) {
	column := "instructor_confirmed"
	if asStudent {
		column = "student_confirmed"
	}

	var out *model.ScheduledLesson
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx,
			`UPDATE scheduled_lessons SET `+column+` = 1, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
			now, lessonID, string(model.LessonBooked), string(model.LessonConfirmed))
		if err != nil {
			return fmt.Errorf("confirm lesson: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := db.getLesson(ctx, tx, lessonID); err != nil {
				return err
			}
			return ErrConcurrentModification
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_lessons SET status = ?
			WHERE id = ? AND student_confirmed = 1 AND instructor_confirmed = 1`,
			string(model.LessonConfirmed), lessonID); err != nil {
			return fmt.Errorf("promote lesson: %w", err)
		}

		out, err = db.getLesson(ctx, tx, lessonID)
		return err
	})
	return out, err
}

// IsSlotBooked implements slots.BookingChecker.
func (db *DB) IsSlotBooked(ctx context.Context, instructorID int64, start, end time.Time) (bool, error) {
	lessons, err := db.queryLessons(ctx, db.DB, `
		SELECT `+lessonColumns+` FROM scheduled_lessons
		WHERE instructor_id = ? AND date = ? AND status != ?`,
		instructorID, db.formatDate(start), string(model.LessonCancelled))
	if err != nil {
		return false, err
	}

	for i := range lessons {
		lStart, err := lessons[i].StartAt()
		if err != nil {
			continue
		}
		lEnd, err := lessons[i].EndAt()
		if err != nil {
			continue
		}
		if slots.Overlaps(start, end, lStart, lEnd) {
			return true, nil
		}
	}
	return false, nil
}

// GetUpcomingLessons returns active lessons starting in [now, now+within] whose reminder
// has not been sent.
func (db *DB) GetUpcomingLessons(ctx context.Context, now time.Time, within time.Duration) ([]model.ScheduledLesson, error) {
	now = now.In(db.loc)
	until := now.Add(within)
	candidates, err := db.queryLessons(ctx, db.DB, `
		SELECT `+lessonColumns+` FROM scheduled_lessons
		WHERE reminder_sent = 0 AND status IN (?, ?) AND date BETWEEN ? AND ?
		ORDER BY date, start_time`,
		string(model.LessonBooked), string(model.LessonConfirmed),
		db.formatDate(now), db.formatDate(until))
	if err != nil {
		return nil, fmt.Errorf("upcoming lessons: %w", err)
	}

	var out []model.ScheduledLesson
	for _, l := range candidates {
		at, err := l.StartAt()
		if err != nil {
			continue
		}
		if !at.Before(now) && !at.After(until) {
			out = append(out, l)
		}
	}
	return out, nil
}

// MarkReminderSent flags the lesson reminder as delivered.
func (db *DB) MarkReminderSent(ctx context.Context, lessonID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE scheduled_lessons SET reminder_sent = 1, updated_at = ? WHERE id = ?`,
		time.Now(), lessonID)
	return err
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/internal/model"
)

// CreateSession inserts a course session.
func (db *DB) CreateSession(ctx context.Context, s *model.CourseSession) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO course_sessions (course_id, start_date, end_date, location, max_spots, booked_spots, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		s.CourseID, db.formatDate(s.StartDate), db.formatDate(s.EndDate), s.Location, s.MaxSpots, now)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.ID, err = res.LastInsertId()
	s.BookedSpots = 0
	s.CreatedAt = now
	return err
}

// GetSession returns a session by id.
func (db *DB) GetSession(ctx context.Context, id int64) (*model.CourseSession, error) {
	var (
		s                  model.CourseSession
		startDate, endDate string
		location           sql.NullString
		createdAt          sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, course_id, start_date, end_date, location, max_spots, booked_spots, created_at
		FROM course_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.CourseID, &startDate, &endDate, &location, &s.MaxSpots, &s.BookedSpots, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	if s.StartDate, err = db.parseDate(startDate); err != nil {
		return nil, err
	}
	if s.EndDate, err = db.parseDate(endDate); err != nil {
		return nil, err
	}
	s.Location = location.String
	s.CreatedAt = createdAt.Time
	return &s, nil
}

// AddSessionSlot attaches a module day to a session.
func (db *DB) AddSessionSlot(ctx context.Context, slot *model.SessionSlot) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO session_slots (session_id, module_id, date, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)`,
		slot.SessionID, slot.ModuleID, db.formatDate(slot.Date), slot.StartTime, slot.EndTime)
	if err != nil {
		return fmt.Errorf("add session slot: %w", err)
	}
	slot.ID, err = res.LastInsertId()
	return err
}

// BookSession reserves one spot for the user. The capacity check and the increment are a
// single conditional UPDATE so the session can never be overbooked.
func (db *DB) BookSession(ctx context.Context, sessionID, userID int64) (*model.SessionBooking, error) {
	var booking *model.SessionBooking
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE course_sessions SET booked_spots = booked_spots + 1
			WHERE id = ? AND booked_spots < max_spots`, sessionID)
		if err != nil {
			return fmt.Errorf("reserve spot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM course_sessions WHERE id = ?`, sessionID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			return ErrSessionFull
		}

		// A cancelled booking is reactivated; an active one is a duplicate.
		now := time.Now()
		res, err = tx.ExecContext(ctx, `
			INSERT INTO session_bookings (session_id, user_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, user_id) DO UPDATE SET
				status = excluded.status,
				updated_at = excluded.updated_at
			WHERE session_bookings.status = ?`,
			sessionID, userID, string(model.BookingBooked), now, now, string(model.BookingCancelled))
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAlreadyBooked
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM session_bookings WHERE session_id = ? AND user_id = ?`,
			sessionID, userID).Scan(&id); err != nil {
			return err
		}
		booking = &model.SessionBooking{
			ID:        id,
			SessionID: sessionID,
			UserID:    userID,
			Status:    model.BookingBooked,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
	return booking, err
}

// CancelSessionBooking cancels the booking and frees its spot.
func (db *DB) CancelSessionBooking(ctx context.Context, sessionID, userID int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE session_bookings SET status = ?, updated_at = ?
			WHERE session_id = ? AND user_id = ? AND status = ?`,
			string(model.BookingCancelled), time.Now(), sessionID, userID, string(model.BookingBooked))
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE course_sessions SET booked_spots = booked_spots - 1
			WHERE id = ? AND booked_spots > 0`, sessionID)
		return err
	})
}

// MarkAttendance records PRESENT or ABSENT for a non-cancelled booking.
func (db *DB) MarkAttendance(ctx context.Context, sessionID, userID int64, status model.BookingStatus) error {
	if !status.ValidAttendance() {
		return fmt.Errorf("invalid attendance status %q", status)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE session_bookings SET status = ?, updated_at = ?
		WHERE session_id = ? AND user_id = ? AND status != ?`,
		string(status), time.Now(), sessionID, userID, string(model.BookingCancelled))
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSessionBooking returns the user's booking of a session.
func (db *DB) GetSessionBooking(ctx context.Context, sessionID, userID int64) (*model.SessionBooking, error) {
	var (
		b                    model.SessionBooking
		status               string
		createdAt, updatedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, status, created_at, updated_at
		FROM session_bookings WHERE session_id = ? AND user_id = ?`, sessionID, userID,
	).Scan(&b.ID, &b.SessionID, &b.UserID, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time
	return &b, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy/internal/model"
)

// UserData is everything stored about one user.
type UserData struct {
	User            *model.User
	Lessons         []model.ScheduledLesson
	Enrollments     []model.Enrollment
	Progress        []model.LessonProgress
	SessionBookings []model.SessionBooking
}

// ExportUserData collects a user's rows from every table that references them.
func (db *DB) ExportUserData(ctx context.Context, userID int64) (*UserData, error) {
	u, err := db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	data := &UserData{User: u}

	if data.Lessons, err = db.ListLessonsForUser(ctx, userID, time.Time{}); err != nil {
		return nil, fmt.Errorf("export lessons: %w", err)
	}
	if data.Enrollments, err = db.listEnrollments(ctx, userID); err != nil {
		return nil, fmt.Errorf("export enrollments: %w", err)
	}
	if data.Progress, err = db.listProgress(ctx, userID); err != nil {
		return nil, fmt.Errorf("export progress: %w", err)
	}
	if data.SessionBookings, err = db.listSessionBookings(ctx, userID); err != nil {
		return nil, fmt.Errorf("export bookings: %w", err)
	}
	return data, nil
}

func (db *DB) listEnrollments(ctx context.Context, userID int64) ([]model.Enrollment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, course_id, progress, enrolled_at, updated_at
		FROM enrollments WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Enrollment
	for rows.Next() {
		var (
			e                     model.Enrollment
			enrolledAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Progress, &enrolledAt, &updatedAt); err != nil {
			return nil, err
		}
		e.EnrolledAt, e.UpdatedAt = enrolledAt.Time, updatedAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *DB) listProgress(ctx context.Context, userID int64) ([]model.LessonProgress, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, lesson_id, completed, completed_at, updated_at
		FROM lesson_progress WHERE user_id = ? ORDER BY lesson_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LessonProgress
	for rows.Next() {
		var (
			p                      model.LessonProgress
			completedAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&p.UserID, &p.LessonID, &p.Completed, &completedAt, &updatedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t := completedAt.Time
			p.CompletedAt = &t
		}
		p.UpdatedAt = updatedAt.Time
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) listSessionBookings(ctx context.Context, userID int64) ([]model.SessionBooking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, user_id, status, created_at, updated_at
		FROM session_bookings WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionBooking
	for rows.Next() {
		var (
			b                    model.SessionBooking
			status               string
			createdAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.SessionID, &b.UserID, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.Status = model.BookingStatus(status)
		b.CreatedAt, b.UpdatedAt = createdAt.Time, updatedAt.Time
		out = append(out, b)
	}
	return out, rows.Err()
}

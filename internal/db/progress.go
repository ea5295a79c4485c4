package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/internal/model"
)

// CreateCourse inserts a course.
func (db *DB) CreateCourse(ctx context.Context, c *model.Course) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO courses (title, description, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, c.Title, c.Description, c.IsPublished, now, now)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt, c.UpdatedAt = now, now
	return err
}

// CreateModule inserts a course module.
func (db *DB) CreateModule(ctx context.Context, m *model.Module) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO modules (course_id, title, sort_order) VALUES (?, ?, ?)`,
		m.CourseID, m.Title, m.SortOrder)
	if err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// CreateCourseLesson inserts an e-learning lesson.
func (db *DB) CreateCourseLesson(ctx context.Context, l *model.CourseLesson) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO course_lessons (module_id, title, sort_order) VALUES (?, ?, ?)`,
		l.ModuleID, l.Title, l.SortOrder)
	if err != nil {
		return fmt.Errorf("create course lesson: %w", err)
	}
	l.ID, err = res.LastInsertId()
	return err
}

// Enroll creates the enrollment if it does not exist yet.
func (db *DB) Enroll(ctx context.Context, userID, courseID int64) (*model.Enrollment, error) {
	now := time.Now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, course_id, progress, enrolled_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(user_id, course_id) DO NOTHING`, userID, courseID, now, now); err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	return db.GetEnrollment(ctx, userID, courseID)
}

// GetEnrollment returns the user's enrollment in a course.
func (db *DB) GetEnrollment(ctx context.Context, userID, courseID int64) (*model.Enrollment, error) {
	var (
		e                     model.Enrollment
		enrolledAt, updatedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, course_id, progress, enrolled_at, updated_at
		FROM enrollments WHERE user_id = ? AND course_id = ?`, userID, courseID,
	).Scan(&e.ID, &e.UserID, &e.CourseID, &e.Progress, &enrolledAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	e.EnrolledAt = enrolledAt.Time
	e.UpdatedAt = updatedAt.Time
	return &e, nil
}

// CourseOfLesson returns the course that owns an e-learning lesson.
func (db *DB) CourseOfLesson(ctx context.Context, lessonID int64) (int64, error) {
	var courseID int64
	err := db.QueryRowContext(ctx, `
		SELECT m.course_id FROM course_lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE l.id = ?`, lessonID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return courseID, err
}

// CompleteLesson marks the lesson complete for the user and stores the recomputed overall
// progress on the enrollment. recompute receives the completed and total lesson counts of
// the course. Repeating the call for a completed lesson is a no-op on the progress row.
func (db *DB) CompleteLesson(ctx context.Context, userID, lessonID int64, at time.Time, recompute func(completed, total int) int) (*model.Enrollment, error) {
	courseID, err := db.CourseOfLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		var enrollmentID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM enrollments WHERE user_id = ? AND course_id = ?`, userID, courseID,
		).Scan(&enrollmentID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotEnrolled
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lesson_progress (user_id, lesson_id, completed, completed_at, updated_at)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT(user_id, lesson_id) DO UPDATE SET
				completed = 1,
				completed_at = COALESCE(lesson_progress.completed_at, excluded.completed_at),
				updated_at = excluded.updated_at`, userID, lessonID, at, at); err != nil {
			return fmt.Errorf("upsert progress: %w", err)
		}

		var total, completed int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(CASE WHEN p.completed = 1 THEN 1 ELSE 0 END), 0)
			FROM course_lessons l
			JOIN modules m ON m.id = l.module_id
			LEFT JOIN lesson_progress p ON p.lesson_id = l.id AND p.user_id = ?
			WHERE m.course_id = ?`, userID, courseID).Scan(&total, &completed); err != nil {
			return fmt.Errorf("count lessons: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE enrollments SET progress = ?, updated_at = ? WHERE id = ?`,
			recompute(completed, total), at, enrollmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.GetEnrollment(ctx, userID, courseID)
}

// DistanceLessonIDs returns the lessons of the course's modules that have no session slot.
func (db *DB) DistanceLessonIDs(ctx context.Context, courseID int64) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT l.id FROM course_lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE m.course_id = ?
		  AND NOT EXISTS (SELECT 1 FROM session_slots s WHERE s.module_id = m.id)
		ORDER BY m.sort_order, l.sort_order, l.id`, courseID)
}

// CompletedLessonIDs returns the user's completed lessons in the course.
func (db *DB) CompletedLessonIDs(ctx context.Context, userID, courseID int64) ([]int64, error) {
	return db.queryIDs(ctx, `
		SELECT p.lesson_id FROM lesson_progress p
		JOIN course_lessons l ON l.id = p.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE p.user_id = ? AND m.course_id = ? AND p.completed = 1`, userID, courseID)
}

// SessionBookingCounts returns the user's non-cancelled bookings across the course's
// sessions and how many of them are PRESENT.
func (db *DB) SessionBookingCounts(ctx context.Context, userID, courseID int64) (total, present int, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN b.status = ? THEN 1 ELSE 0 END), 0)
		FROM session_bookings b
		JOIN course_sessions s ON s.id = b.session_id
		WHERE b.user_id = ? AND s.course_id = ? AND b.status != ?`,
		string(model.BookingPresent), userID, courseID, string(model.BookingCancelled)).Scan(&total, &present)
	return total, present, err
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

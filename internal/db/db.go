package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound               = errors.New("not found")
	ErrSessionFull            = errors.New("session is full")
	ErrAlreadyBooked          = errors.New("already booked")
	ErrDuplicate              = errors.New("already exists")
	ErrNotEnrolled            = errors.New("user is not enrolled in the course")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// DB wraps sql.DB for the academy store.
type DB struct {
	*sql.DB
	path   string
	loc    *time.Location
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL, busy timeout and immediate write transactions so concurrent bookings serialize.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, loc: time.Local, logger: logger}
	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("Database initialized")
	}
	return db, nil
}

// SetLocation sets the timezone lesson dates are read in.
func (db *DB) SetLocation(loc *time.Location) {
	if loc != nil {
		db.loc = loc
	}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT,
			phone TEXT,
			role TEXT NOT NULL DEFAULT 'student',
			hour_balance INTEGER NOT NULL DEFAULT 0,
			telegram_chat_id INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id INTEGER PRIMARY KEY,
			reminders_enabled BOOLEAN NOT NULL DEFAULT 1,
			reminder_hours_before INTEGER NOT NULL DEFAULT 24,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			is_published BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS modules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			course_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS course_lessons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			module_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (module_id) REFERENCES modules(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS lesson_progress (
			user_id INTEGER NOT NULL,
			lesson_id INTEGER NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			completed_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, lesson_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (lesson_id) REFERENCES course_lessons(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			course_id INTEGER NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			enrolled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, course_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS course_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			course_id INTEGER NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			location TEXT,
			max_spots INTEGER NOT NULL,
			booked_spots INTEGER NOT NULL DEFAULT 0 CHECK (booked_spots >= 0 AND booked_spots <= max_spots),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS session_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			module_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES course_sessions(id) ON DELETE CASCADE,
			FOREIGN KEY (module_id) REFERENCES modules(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS session_bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'BOOKED',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (session_id, user_id),
			FOREIGN KEY (session_id) REFERENCES course_sessions(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS availability_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instructor_id INTEGER NOT NULL,
			series_id TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			pattern TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (instructor_id, date, start_time, end_time),
			FOREIGN KEY (instructor_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_lessons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER NOT NULL,
			instructor_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'BOOKED',
			student_confirmed BOOLEAN NOT NULL DEFAULT 0,
			instructor_confirmed BOOLEAN NOT NULL DEFAULT 0,
			is_urgent BOOLEAN NOT NULL DEFAULT 0,
			urgency_reason TEXT,
			urgency_validated BOOLEAN NOT NULL DEFAULT 0,
			hour_deducted BOOLEAN NOT NULL DEFAULT 0,
			cancellation_reason TEXT,
			cancelled_by INTEGER,
			cancelled_at DATETIME,
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (student_id) REFERENCES users(id),
			FOREIGN KEY (instructor_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS lesson_reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			lesson_id INTEGER NOT NULL,
			reminder_type TEXT NOT NULL,
			scheduled_at DATETIME NOT NULL,
			sent_at DATETIME,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, lesson_id, reminder_type)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_modules_course ON modules(course_id)`,
		`CREATE INDEX IF NOT EXISTS idx_course_lessons_module ON course_lessons(module_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_slots_module ON session_slots(module_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_course ON course_sessions(course_id)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_instructor_date ON availability_slots(instructor_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_student_date ON scheduled_lessons(student_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_instructor_date ON scheduled_lessons(instructor_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_reminder ON scheduled_lessons(reminder_sent, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_status ON lesson_reminders(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// inTx runs fn in a transaction and commits when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func (db *DB) parseDate(s string) (time.Time, error) {
	// Older rows written through the driver may carry a full timestamp.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.ParseInLocation(dateLayout, s, db.loc)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

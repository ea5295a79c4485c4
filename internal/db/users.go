package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy/internal/model"
)

const userColumns = `id, email, first_name, last_name, phone, role, hour_balance, telegram_chat_id, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		role                 string
		lastName, phone      sql.NullString
		chatID               sql.NullInt64
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &lastName, &phone, &role, &u.HourBalance, &chatID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.LastName = lastName.String
	u.Phone = phone.String
	u.Role = model.Role(role)
	u.TelegramChatID = chatID.Int64
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

// CreateUser inserts a user and fills its id.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	now := time.Now()
	var chatID any
	if u.TelegramChatID != 0 {
		chatID = u.TelegramChatID
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (email, first_name, last_name, phone, role, hour_balance, telegram_chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.FirstName, u.LastName, u.Phone, string(u.Role), u.HourBalance, chatID, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	u.CreatedAt, u.UpdatedAt = now, now
	return err
}

// GetUser returns a user by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// SetTelegramChatID links a Telegram chat to the user.
func (db *DB) SetTelegramChatID(ctx context.Context, userID, chatID int64) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET telegram_chat_id = ?, updated_at = ? WHERE id = ?`, chatID, time.Now(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddHours changes the lesson hour balance by delta.
func (db *DB) AddHours(ctx context.Context, userID int64, delta int) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET hour_balance = hour_balance + ?, updated_at = ? WHERE id = ?`, delta, time.Now(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserSettings holds reminder preferences.
type UserSettings struct {
	UserID              int64
	RemindersEnabled    bool
	ReminderHoursBefore int
}

// GetUserSettings returns stored settings or defaults when none exist.
func (db *DB) GetUserSettings(ctx context.Context, userID int64) (*UserSettings, error) {
	s := &UserSettings{UserID: userID, RemindersEnabled: true, ReminderHoursBefore: 24}
	err := db.QueryRowContext(ctx,
		`SELECT reminders_enabled, reminder_hours_before FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&s.RemindersEnabled, &s.ReminderHoursBefore)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return s, nil
}

// MaxReminderHoursBefore returns the longest lead time among users with reminders on.
func (db *DB) MaxReminderHoursBefore(ctx context.Context) (int, error) {
	var hours int
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(reminder_hours_before), 0) FROM user_settings WHERE reminders_enabled = 1`,
	).Scan(&hours)
	if err != nil {
		return 0, fmt.Errorf("max reminder hours: %w", err)
	}
	return hours, nil
}

// UpsertUserSettings stores reminder preferences.
func (db *DB) UpsertUserSettings(ctx context.Context, s *UserSettings) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, reminders_enabled, reminder_hours_before, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			reminders_enabled = excluded.reminders_enabled,
			reminder_hours_before = excluded.reminder_hours_before,
			updated_at = excluded.updated_at`,
		s.UserID, s.RemindersEnabled, s.ReminderHoursBefore, time.Now())
	return err
}

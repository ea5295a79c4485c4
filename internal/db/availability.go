package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy/internal/model"
)

// InsertAvailabilitySlots stores the occurrences of one recurring definition. Occurrences
// already present for the instructor are skipped. It returns how many rows were added.
func (db *DB) InsertAvailabilitySlots(ctx context.Context, slots []model.AvailabilitySlot) (int, error) {
	inserted := 0
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO availability_slots (instructor_id, series_id, date, start_time, end_time, pattern, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		for i := range slots {
			s := &slots[i]
			res, err := stmt.ExecContext(ctx, s.InstructorID, s.SeriesID, db.formatDate(s.Date), s.StartTime, s.EndTime, s.Pattern, now)
			if err != nil {
				return fmt.Errorf("insert availability %s: %w", db.formatDate(s.Date), err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				s.ID, _ = res.LastInsertId()
				s.CreatedAt = now
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

// ListAvailabilityForDate returns an instructor's availability on a date ordered by start.
func (db *DB) ListAvailabilityForDate(ctx context.Context, instructorID int64, date time.Time) ([]model.AvailabilitySlot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, instructor_id, series_id, date, start_time, end_time, pattern, created_at
		FROM availability_slots
		WHERE instructor_id = ? AND date = ?
		ORDER BY start_time`, instructorID, db.formatDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilitySlot
	for rows.Next() {
		var (
			s         model.AvailabilitySlot
			d         string
			createdAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.InstructorID, &s.SeriesID, &d, &s.StartTime, &s.EndTime, &s.Pattern, &createdAt); err != nil {
			return nil, err
		}
		if s.Date, err = db.parseDate(d); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.Time
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAvailabilitySeries removes every future occurrence of a series.
func (db *DB) DeleteAvailabilitySeries(ctx context.Context, instructorID int64, seriesID string, from time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM availability_slots
		WHERE instructor_id = ? AND series_id = ? AND date >= ?`,
		instructorID, seriesID, db.formatDate(from))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

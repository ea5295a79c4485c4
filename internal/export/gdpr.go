package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"academy/internal/db"
)

const timeLayout = "2006-01-02 15:04"

// UserDataFilename is the download name of a user's data export.
func UserDataFilename(userID int64, at time.Time) string {
	return fmt.Sprintf("user_%d_%s.xlsx", userID, at.Format("20060102"))
}

// WriteUserData renders everything stored about a user as a workbook with one sheet
// per table.
func WriteUserData(w io.Writer, data *db.UserData) error {
	wb := NewWorkbook()
	defer wb.Close()

	u := data.User
	if err := sheet(wb, "Profile",
		[]string{"id", "email", "first_name", "last_name", "phone", "role", "hour_balance", "telegram_chat_id", "created_at"},
		[][]any{{u.ID, u.Email, u.FirstName, u.LastName, u.Phone, string(u.Role), u.HourBalance, u.TelegramChatID, formatTime(u.CreatedAt)}},
	); err != nil {
		return err
	}

	lessons := make([][]any, 0, len(data.Lessons))
	for _, l := range data.Lessons {
		lessons = append(lessons, []any{
			l.ID, l.Date.Format("2006-01-02"), l.StartTime, l.EndTime, string(l.Status),
			l.StudentID, l.InstructorID, l.HourDeducted, l.CancellationReason,
		})
	}
	if err := sheet(wb, "Lessons",
		[]string{"id", "date", "start", "end", "status", "student_id", "instructor_id", "hour_deducted", "cancellation_reason"},
		lessons,
	); err != nil {
		return err
	}

	enrollments := make([][]any, 0, len(data.Enrollments))
	for _, e := range data.Enrollments {
		enrollments = append(enrollments, []any{e.ID, e.CourseID, e.Progress, formatTime(e.EnrolledAt)})
	}
	if err := sheet(wb, "Enrollments", []string{"id", "course_id", "progress", "enrolled_at"}, enrollments); err != nil {
		return err
	}

	progress := make([][]any, 0, len(data.Progress))
	for _, p := range data.Progress {
		completedAt := ""
		if p.CompletedAt != nil {
			completedAt = formatTime(*p.CompletedAt)
		}
		progress = append(progress, []any{p.LessonID, p.Completed, completedAt})
	}
	if err := sheet(wb, "Lesson progress", []string{"lesson_id", "completed", "completed_at"}, progress); err != nil {
		return err
	}

	bookings := make([][]any, 0, len(data.SessionBookings))
	for _, b := range data.SessionBookings {
		bookings = append(bookings, []any{b.ID, b.SessionID, string(b.Status), formatTime(b.CreatedAt)})
	}
	if err := sheet(wb, "Session bookings", []string{"id", "session_id", "status", "booked_at"}, bookings); err != nil {
		return err
	}

	return wb.Save(w)
}

func sheet(wb *Workbook, name string, header []string, rows [][]any) error {
	if err := wb.AddSheet(name); err != nil {
		return err
	}
	if err := wb.WriteHeader(header); err != nil {
		return fmt.Errorf("%s header: %w", strings.ToLower(name), err)
	}
	for _, r := range rows {
		if err := wb.WriteRow(r); err != nil {
			return fmt.Errorf("%s row: %w", strings.ToLower(name), err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

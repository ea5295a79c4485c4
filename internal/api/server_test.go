package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/availability"
	"academy/internal/db"
	"academy/internal/model"
	"academy/internal/policy"
	"academy/internal/progress"
	"academy/internal/recurrence"
	"academy/internal/service"
	"academy/internal/slots"
	"academy/shared/access"
)

type fakeLessons struct {
	bookErr     error
	decision    policy.CancellationDecision
	cancelErr   error
	lastBooking service.BookRequest
}

func (f *fakeLessons) CheckAvailability(_ context.Context, req service.SlotRequest) (availability.Availability, error) {
	if req.ActorID != req.UserID {
		return availability.Availability{}, &access.AccessDeniedError{Reason: "not yours"}
	}
	return availability.Availability{Available: req.StartTime != "10:30"}, nil
}
func (f *fakeLessons) Book(_ context.Context, req service.BookRequest) (*model.ScheduledLesson, error) {
	f.lastBooking = req
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &model.ScheduledLesson{ID: 42, StudentID: req.StudentID, InstructorID: req.InstructorID, Status: model.LessonBooked}, nil
}
func (f *fakeLessons) PreviewCancellation(_ context.Context, _, _ int64) (policy.CancellationDecision, error) {
	return f.decision, nil
}
func (f *fakeLessons) Cancel(_ context.Context, req service.CancelRequest) (*service.CancelResult, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &service.CancelResult{
		Lesson:       &model.ScheduledLesson{ID: req.LessonID, Status: model.LessonCancelled},
		Decision:     f.decision,
		HourDeducted: !f.decision.Allowed(),
	}, nil
}
func (f *fakeLessons) ValidateUrgency(_ context.Context, actorID, _ int64, _ bool) (bool, error) {
	if actorID != 9 {
		return false, &access.AccessDeniedError{Reason: "staff only"}
	}
	return true, nil
}
func (f *fakeLessons) Confirm(_ context.Context, _, id int64) (*model.ScheduledLesson, policy.ConfirmationStatus, error) {
	return &model.ScheduledLesson{ID: id, StudentConfirmed: true}, policy.AwaitingInstructor, nil
}

type fakeSchedule struct{}

func (fakeSchedule) ValidateRecurring(req service.RecurringSlotsRequest) error {
	if len(req.DaysOfWeek) == 0 {
		return &recurrence.ValidationError{Kind: recurrence.KindInvalidWeekdays, Reason: "weekly recurrence needs at least one weekday"}
	}
	return nil
}
func (fakeSchedule) CreateRecurringSlots(_ context.Context, req service.RecurringSlotsRequest) (*service.RecurringSlotsResult, error) {
	return &service.RecurringSlotsResult{SeriesID: "s-1", Occurrences: 2, Created: 2, Dates: []string{"2026-03-02", "2026-03-09"}}, nil
}
func (fakeSchedule) AvailableSlots(_ context.Context, _ int64, date string, freeOnly bool) ([]slots.SlotInfo, error) {
	if date == "bad" {
		return nil, service.ErrInvalidInput
	}
	infos := []slots.SlotInfo{{Start: "09:00", End: "11:00", DurationHours: 2, Available: true}}
	if !freeOnly {
		infos = append(infos, slots.SlotInfo{Start: "11:00", End: "13:00", DurationHours: 2})
	}
	return infos, nil
}

type fakeProgress struct{}

func (fakeProgress) MarkLessonComplete(_ context.Context, _, userID, _ int64) (*model.Enrollment, error) {
	return &model.Enrollment{UserID: userID, CourseID: 3, Progress: 75}, nil
}
func (fakeProgress) Snapshot(_ context.Context, actorID, userID, courseID int64) (progress.Snapshot, error) {
	if actorID != userID {
		return progress.Snapshot{}, &access.AccessDeniedError{Reason: "not yours"}
	}
	if courseID == 4 {
		return progress.Snapshot{}, db.ErrNotEnrolled
	}
	return progress.Snapshot{DistanceProgress: 75, SessionProgress: 50, OverallProgress: 60}, nil
}

type fakeSessions struct{}

func (fakeSessions) Book(_ context.Context, _, sessionID, userID int64) (*model.SessionBooking, error) {
	if sessionID == 8 {
		return nil, db.ErrSessionFull
	}
	return &model.SessionBooking{ID: 1, SessionID: sessionID, UserID: userID, Status: model.BookingBooked}, nil
}
func (fakeSessions) MarkAttendance(context.Context, int64, int64, int64, model.BookingStatus) error {
	return nil
}
func (fakeSessions) CancelBooking(_ context.Context, actorID, sessionID, userID int64) error {
	switch {
	case actorID != userID:
		return &access.AccessDeniedError{Reason: "not yours"}
	case sessionID == 8:
		return db.ErrNotFound
	}
	return nil
}

type fakeExports struct{}

func (fakeExports) UserData(_ context.Context, _, userID int64, w io.Writer) (string, error) {
	_, err := w.Write([]byte("xlsx"))
	return "user_1.xlsx", err
}
func (fakeExports) Calendar(_ context.Context, actorID, userID int64, w io.Writer) error {
	if actorID != userID {
		return &access.AccessDeniedError{Reason: "not yours"}
	}
	_, err := w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	return err
}

func newTestServer(lessons *fakeLessons) http.Handler {
	logger := zerolog.New(io.Discard)
	return NewHTTPServer(0, "test-key", Services{
		Lessons:  lessons,
		Schedule: fakeSchedule{},
		Progress: fakeProgress{},
		Sessions: fakeSessions{},
		Exports:  fakeExports{},
	}, &logger).Handler()
}

func do(h http.Handler, method, path, body string, user string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("x-api-key", "test-key")
	if user != "" {
		req.Header.Set("x-user-id", user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestAPIKeyRequired(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	req := httptest.NewRequest(http.MethodGet, "/api/slots/split?start=09:00&end=11:00", http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(h, http.MethodGet, "/api/slots/split?start=09:00&end=11:00", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestBookLessonEndpoint(t *testing.T) {
	valid := `{"student_id":1,"instructor_id":2,"date":"2026-03-10","start_time":"10:00","end_time":"12:00"}`

	tests := []struct {
		name           string
		body           string
		user           string
		bookErr        error
		expectedStatus int
		expectedKind   string
	}{
		{"booked", valid, "1", nil, http.StatusCreated, ""},
		{"missing actor", valid, "", nil, http.StatusBadRequest, ""},
		{"bad date", `{"student_id":1,"instructor_id":2,"date":"10.03.2026","start_time":"10:00","end_time":"12:00"}`, "1", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"same person", `{"student_id":1,"instructor_id":1,"date":"2026-03-10","start_time":"10:00","end_time":"12:00"}`, "1", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown field", `{"student_id":1,"foo":true}`, "1", nil, http.StatusBadRequest, ""},
		{"taken", valid, "1", &service.UnavailableError{Availability: availability.Availability{Reason: availability.ReasonOverlaps, ConflictingLessonID: 7}}, http.StatusConflict, "SLOT_UNAVAILABLE"},
		{"too late", valid, "1", service.ErrBookingTooLate, http.StatusUnprocessableEntity, "BOOKING_TOO_LATE"},
		{"denied", valid, "5", &access.AccessDeniedError{Reason: "no"}, http.StatusForbidden, "ACCESS_DENIED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeLessons{bookErr: tt.bookErr})
			w := do(h, http.MethodPost, "/api/lessons", tt.body, tt.user)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedKind != "" {
				assert.Equal(t, tt.expectedKind, decodeBody(t, w)["kind"])
			}
		})
	}
}

func TestBookLessonValidationFields(t *testing.T) {
	h := newTestServer(&fakeLessons{})
	w := do(h, http.MethodPost, "/api/lessons", `{"student_id":1,"instructor_id":2,"start_time":"10:00","end_time":"12:00"}`, "1")
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "date")
}

func TestCancelEndpoints(t *testing.T) {
	late := policy.CancellationDecision{Outcome: policy.OutcomeLate, HoursUntilLesson: 10}
	lessons := &fakeLessons{decision: late}
	h := newTestServer(lessons)

	w := do(h, http.MethodGet, "/api/lessons/10/cancellation", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "LATE", body["outcome"])
	assert.Contains(t, body["reason"], "late cancellation")

	w = do(h, http.MethodPost, "/api/lessons/10/cancel", `{"reason":"sick"}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["hour_deducted"])

	w = do(h, http.MethodPost, "/api/lessons/10/cancel", `{"is_urgent":true}`, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/api/lessons/abc/cancel", `{}`, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	lessons.cancelErr = &service.PolicyError{Decision: policy.CancellationDecision{Outcome: policy.OutcomePast, HoursUntilLesson: -2}}
	w = do(h, http.MethodPost, "/api/lessons/10/cancel", `{}`, "1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PAST", decodeBody(t, w)["kind"])

	lessons.cancelErr = db.ErrNotFound
	w = do(h, http.MethodPost, "/api/lessons/10/cancel", `{}`, "1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUrgencyAndConfirmEndpoints(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	w := do(h, http.MethodPost, "/api/lessons/10/urgency", `{"validated":true}`, "1")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, http.MethodPost, "/api/lessons/10/urgency", `{"validated":true}`, "9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["refunded"])

	w = do(h, http.MethodPost, "/api/lessons/10/confirm", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "AWAITING_INSTRUCTOR", body["status"])
	assert.Equal(t, false, body["can_confirm"])
}

func TestLessonAvailabilityEndpoint(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	w := do(h, http.MethodPost, "/api/lessons/availability", `{"user_id":1,"date":"2026-03-10","start_time":"11:00","end_time":"12:00"}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["available"])

	w = do(h, http.MethodPost, "/api/lessons/availability", `{"user_id":1,"date":"2026-03-10","start_time":"10:30","end_time":"11:30"}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["available"])

	w = do(h, http.MethodPost, "/api/lessons/availability", `{"user_id":1,"date":"2026-03-10","start_time":"11:00","end_time":"12:00"}`, "99")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, http.MethodPost, "/api/lessons/availability", `{"user_id":1,"date":"2026-03-10","start_time":"11:00","end_time":"12:00"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecurringSlotEndpoints(t *testing.T) {
	h := newTestServer(&fakeLessons{})
	body := `{"start_time":"09:00","end_time":"17:00","pattern":"WEEKLY","days_of_week":[],"recurrence_end_date":"2026-06-30"}`

	w := do(h, http.MethodPost, "/api/recurring-slots/validate", body, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_WEEKDAYS", decodeBody(t, w)["kind"])

	body = `{"start_time":"09:00","end_time":"17:00","pattern":"WEEKLY","days_of_week":[2],"recurrence_end_date":"2026-06-30"}`
	w = do(h, http.MethodPost, "/api/recurring-slots/validate", body, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodPost, "/api/recurring-slots", body, "2")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s-1", decodeBody(t, w)["series_id"])
}

func TestSplitEndpoint(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	tests := []struct {
		query      string
		status     int
		units      int
		totalHours float64
	}{
		{"start=09:00&end=17:00", http.StatusOK, 4, 8},
		{"start=09:00&end=10:30", http.StatusOK, 1, 1},
		{"start=9&end=10:30", http.StatusBadRequest, 0, 0},
		{"start=09:00", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(h, http.MethodGet, "/api/slots/split?"+tt.query, "", "")
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			body := decodeBody(t, w)
			assert.Len(t, body["units"], tt.units)
			assert.Equal(t, tt.totalHours, body["total_hours"])
		})
	}
}

func TestInstructorSlotsEndpoint(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	w := do(h, http.MethodGet, "/api/instructors/2/slots?date=2026-03-10", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["slots"], 2)

	w = do(h, http.MethodGet, "/api/instructors/2/slots?date=2026-03-10&available=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["slots"], 1)

	w = do(h, http.MethodGet, "/api/instructors/2/slots?date=2026-03-10&available=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/api/instructors/2/slots", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/api/instructors/2/slots?date=bad", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressAndSessionEndpoints(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	w := do(h, http.MethodPost, "/api/progress/lessons", `{"user_id":1,"lesson_id":5}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(75), decodeBody(t, w)["progress"])

	w = do(h, http.MethodGet, "/api/enrollments/1/3/progress", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(50), decodeBody(t, w)["session_progress"])

	w = do(h, http.MethodGet, "/api/enrollments/1/3/progress", "", "99")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(h, http.MethodGet, "/api/enrollments/1/3/progress", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/api/enrollments/1/4/progress", "", "1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodPost, "/api/sessions/7/bookings", `{"user_id":1}`, "1")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(h, http.MethodPost, "/api/sessions/8/bookings", `{"user_id":1}`, "1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_FULL", decodeBody(t, w)["kind"])

	w = do(h, http.MethodPost, "/api/sessions/7/attendance", `{"user_id":1,"status":"LATE"}`, "2")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/api/sessions/7/attendance", `{"user_id":1,"status":"PRESENT"}`, "2")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodDelete, "/api/sessions/7/bookings/1", "", "1")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, http.MethodDelete, "/api/sessions/8/bookings/1", "", "1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodDelete, "/api/sessions/7/bookings/1", "", "5")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportEndpoints(t *testing.T) {
	h := newTestServer(&fakeLessons{})

	w := do(h, http.MethodGet, "/api/users/1/export.xlsx", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "user_1.xlsx")
	assert.True(t, bytes.Equal([]byte("xlsx"), w.Body.Bytes()))

	w = do(h, http.MethodGet, "/api/users/1/calendar.ics", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")

	w = do(h, http.MethodGet, "/api/users/1/calendar.ics", "", "2")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

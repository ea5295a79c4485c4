package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"academy/internal/model"
	"academy/internal/progress"
)

// ProgressAPI is the progress service as seen by the handlers.
type ProgressAPI interface {
	MarkLessonComplete(ctx context.Context, actorID, userID, lessonID int64) (*model.Enrollment, error)
	Snapshot(ctx context.Context, actorID, userID, courseID int64) (progress.Snapshot, error)
}

// SessionAPI is the session service as seen by the handlers.
type SessionAPI interface {
	Book(ctx context.Context, actorID, sessionID, userID int64) (*model.SessionBooking, error)
	MarkAttendance(ctx context.Context, actorID, sessionID, userID int64, status model.BookingStatus) error
	CancelBooking(ctx context.Context, actorID, sessionID, userID int64) error
}

// ExportAPI produces personal data downloads.
type ExportAPI interface {
	UserData(ctx context.Context, actorID, userID int64, w io.Writer) (string, error)
	Calendar(ctx context.Context, actorID, userID int64, w io.Writer) error
}

type CompleteLessonRequest struct {
	UserID   int64 `json:"user_id" validate:"required,gt=0"`
	LessonID int64 `json:"lesson_id" validate:"required,gt=0"`
}

type SessionBookingRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type AttendanceRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Status string `json:"status" validate:"required,oneof=PRESENT ABSENT"`
}

// handleCompleteLesson marks an e-learning lesson completed.
// POST /api/progress/lessons
func (s *HTTPServer) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CompleteLessonRequest
	if !decode(w, r, &req) {
		return
	}

	enrollment, err := s.services.Progress.MarkLessonComplete(r.Context(), actor, req.UserID, req.LessonID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

// handleProgressSnapshot returns the progress breakdown of an enrollment.
// GET /api/enrollments/{userID}/{courseID}/progress
func (s *HTTPServer) handleProgressSnapshot(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	courseID, err := pathID(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.services.Progress.Snapshot(r.Context(), actor, userID, courseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleBookSession reserves a session spot.
// POST /api/sessions/{id}/bookings
func (s *HTTPServer) handleBookSession(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req SessionBookingRequest
	if !decode(w, r, &req) {
		return
	}

	booking, err := s.services.Sessions.Book(r.Context(), actor, sessionID, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleCancelSessionBooking frees the user's spot in a session.
// DELETE /api/sessions/{id}/bookings/{userID}
func (s *HTTPServer) handleCancelSessionBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.services.Sessions.CancelBooking(r.Context(), actor, sessionID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAttendance records whether a booked learner attended.
// POST /api/sessions/{id}/attendance
func (s *HTTPServer) handleAttendance(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req AttendanceRequest
	if !decode(w, r, &req) {
		return
	}

	status := model.BookingStatus(req.Status)
	if err := s.services.Sessions.MarkAttendance(r.Context(), actor, sessionID, req.UserID, status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "user_id": req.UserID, "status": status})
}

// handleUserExport downloads everything stored about a user as a workbook.
// GET /api/users/{id}/export.xlsx
func (s *HTTPServer) handleUserExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	name, err := s.services.Exports.UserData(r.Context(), actor, userID, &buf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = buf.WriteTo(w)
}

// handleUserCalendar serves the user's lessons as an iCalendar feed.
// GET /api/users/{id}/calendar.ics
func (s *HTTPServer) handleUserCalendar(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.services.Exports.Calendar(r.Context(), actor, userID, &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

package api

import (
	"context"
	"net/http"

	"academy/internal/availability"
	"academy/internal/model"
	"academy/internal/policy"
	"academy/internal/service"
)

// LessonAPI is the lesson service as seen by the handlers.
type LessonAPI interface {
	CheckAvailability(ctx context.Context, req service.SlotRequest) (availability.Availability, error)
	Book(ctx context.Context, req service.BookRequest) (*model.ScheduledLesson, error)
	PreviewCancellation(ctx context.Context, actorID, lessonID int64) (policy.CancellationDecision, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*service.CancelResult, error)
	ValidateUrgency(ctx context.Context, actorID, lessonID int64, validated bool) (bool, error)
	Confirm(ctx context.Context, actorID, lessonID int64) (*model.ScheduledLesson, policy.ConfirmationStatus, error)
}

// SlotCheckRequest is the body of POST /api/lessons/availability.
type SlotCheckRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// BookLessonRequest is the body of POST /api/lessons.
type BookLessonRequest struct {
	StudentID    int64  `json:"student_id" validate:"required,gt=0"`
	InstructorID int64  `json:"instructor_id" validate:"required,gt=0,nefield=StudentID"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string `json:"end_time" validate:"required,datetime=15:04"`
}

// CancelLessonRequest is the body of POST /api/lessons/{id}/cancel.
type CancelLessonRequest struct {
	Reason        string `json:"reason" validate:"max=500"`
	IsUrgent      bool   `json:"is_urgent"`
	UrgencyReason string `json:"urgency_reason" validate:"required_if=IsUrgent true,max=500"`
}

// UrgencyRequest is the body of POST /api/lessons/{id}/urgency.
type UrgencyRequest struct {
	Validated bool `json:"validated"`
}

// DecisionResponse describes a cancellation decision.
type DecisionResponse struct {
	Allowed          bool    `json:"allowed"`
	Outcome          string  `json:"outcome"`
	HoursUntilLesson float64 `json:"hours_until_lesson"`
	Reason           string  `json:"reason,omitempty"`
}

func decisionResponse(d policy.CancellationDecision) DecisionResponse {
	return DecisionResponse{
		Allowed:          d.Allowed(),
		Outcome:          string(d.Outcome),
		HoursUntilLesson: d.HoursUntilLesson,
		Reason:           d.Reason(),
	}
}

// ConfirmResponse is the lesson after a confirmation and the folded status.
type ConfirmResponse struct {
	Lesson     *model.ScheduledLesson `json:"lesson"`
	Status     string                 `json:"status"`
	CanConfirm bool                   `json:"can_confirm"`
	Reason     string                 `json:"reason"`
}

// handleLessonAvailability checks a slot against the user's lessons.
// POST /api/lessons/availability
func (s *HTTPServer) handleLessonAvailability(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req SlotCheckRequest
	if !decode(w, r, &req) {
		return
	}
	av, err := s.services.Lessons.CheckAvailability(r.Context(), service.SlotRequest{
		ActorID:   actor,
		UserID:    req.UserID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

// handleBookLesson books a one-to-one lesson.
// POST /api/lessons
func (s *HTTPServer) handleBookLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req BookLessonRequest
	if !decode(w, r, &req) {
		return
	}

	lesson, err := s.services.Lessons.Book(r.Context(), service.BookRequest{
		ActorID:      actor,
		StudentID:    req.StudentID,
		InstructorID: req.InstructorID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

// handleCancellationPreview tells whether cancelling now is free.
// GET /api/lessons/{id}/cancellation
func (s *HTTPServer) handleCancellationPreview(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.services.Lessons.PreviewCancellation(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse(d))
}

// handleCancelLesson cancels a lesson.
// POST /api/lessons/{id}/cancel
func (s *HTTPServer) handleCancelLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CancelLessonRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.services.Lessons.Cancel(r.Context(), service.CancelRequest{
		ActorID:       actor,
		LessonID:      id,
		Reason:        req.Reason,
		IsUrgent:      req.IsUrgent,
		UrgencyReason: req.UrgencyReason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson":        res.Lesson,
		"decision":      decisionResponse(res.Decision),
		"hour_deducted": res.HourDeducted,
	})
}

// handleValidateUrgency accepts or rejects an urgency claim.
// POST /api/lessons/{id}/urgency
func (s *HTTPServer) handleValidateUrgency(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UrgencyRequest
	if !decode(w, r, &req) {
		return
	}

	refunded, err := s.services.Lessons.ValidateUrgency(r.Context(), actor, id, req.Validated)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"validated": req.Validated, "refunded": refunded})
}

// handleConfirmLesson records the caller's confirmation.
// POST /api/lessons/{id}/confirm
func (s *HTTPServer) handleConfirmLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lesson, status, err := s.services.Lessons.Confirm(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfirmResponse{
		Lesson:     lesson,
		Status:     string(status),
		CanConfirm: status.CanConfirm(),
		Reason:     status.Reason(),
	})
}

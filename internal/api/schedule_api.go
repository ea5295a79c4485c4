package api

import (
	"context"
	"net/http"
	"strconv"

	"academy/internal/service"
	"academy/internal/slots"
)

// ScheduleAPI is the availability service as seen by the handlers.
type ScheduleAPI interface {
	ValidateRecurring(req service.RecurringSlotsRequest) error
	CreateRecurringSlots(ctx context.Context, req service.RecurringSlotsRequest) (*service.RecurringSlotsResult, error)
	AvailableSlots(ctx context.Context, instructorID int64, date string, freeOnly bool) ([]slots.SlotInfo, error)
}

// RecurringSlotsRequest is the body of the recurring slot endpoints. Format problems are
// reported by the recurrence validator with their kind, so only presence is checked here.
type RecurringSlotsRequest struct {
	InstructorID      int64  `json:"instructor_id"`
	StartTime         string `json:"start_time" validate:"required"`
	EndTime           string `json:"end_time" validate:"required"`
	Pattern           string `json:"pattern" validate:"required"`
	DaysOfWeek        []int  `json:"days_of_week"`
	RecurrenceEndDate string `json:"recurrence_end_date" validate:"required"`
}

func (req *RecurringSlotsRequest) toService(actor int64) service.RecurringSlotsRequest {
	return service.RecurringSlotsRequest{
		ActorID:           actor,
		InstructorID:      req.InstructorID,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Pattern:           req.Pattern,
		DaysOfWeek:        req.DaysOfWeek,
		RecurrenceEndDate: req.RecurrenceEndDate,
	}
}

// SplitResponse is the result of GET /api/slots/split.
type SplitResponse struct {
	Units      []slots.BookableUnit `json:"units"`
	TotalHours int                  `json:"total_hours"`
}

// handleValidateRecurring checks a recurring slot definition without storing it.
// POST /api/recurring-slots/validate
func (s *HTTPServer) handleValidateRecurring(w http.ResponseWriter, r *http.Request) {
	var req RecurringSlotsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.services.Schedule.ValidateRecurring(req.toService(0)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// handleCreateRecurring stores every occurrence of a recurring availability window.
// POST /api/recurring-slots
func (s *HTTPServer) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RecurringSlotsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.InstructorID == 0 {
		req.InstructorID = actor
	}

	res, err := s.services.Schedule.CreateRecurringSlots(r.Context(), req.toService(actor))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleSplit splits a window into bookable units.
// GET /api/slots/split?start=HH:MM&end=HH:MM
func (s *HTTPServer) handleSplit(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	units, err := slots.SplitIntoBookable(start, end)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "INVALID_FORMAT"})
		return
	}
	if units == nil {
		units = []slots.BookableUnit{}
	}
	writeJSON(w, http.StatusOK, SplitResponse{Units: units, TotalHours: slots.TotalHours(units)})
}

// handleInstructorSlots lists an instructor's bookable units on a date.
// GET /api/instructors/{id}/slots?date=YYYY-MM-DD[&available=true]
func (s *HTTPServer) handleInstructorSlots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	freeOnly := false
	if v := r.URL.Query().Get("available"); v != "" {
		if freeOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "available must be true or false")
			return
		}
	}

	infos, err := s.services.Schedule.AvailableSlots(r.Context(), id, date, freeOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instructor_id": id, "date": date, "slots": infos})
}

package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"academy/internal/db"
	"academy/internal/recurrence"
	"academy/internal/service"
	"academy/shared/access"
)

// writeServiceError maps service and storage errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr        *recurrence.ValidationError
		unavailable *service.UnavailableError
		policyErr   *service.PolicyError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Reason, Kind: string(verr.Kind)})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "SLOT_UNAVAILABLE", Extra: unavailable.Availability})
	case errors.As(err, &policyErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: policyErr.Error(),
			Kind:  string(policyErr.Decision.Outcome),
			Extra: decisionResponse(policyErr.Decision),
		})
	case access.IsAccessDenied(err):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Kind: "ACCESS_DENIED"})
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "INVALID_REQUEST"})
	case errors.Is(err, service.ErrBookingTooLate):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "BOOKING_TOO_LATE"})
	case errors.Is(err, service.ErrLessonClosed), errors.Is(err, db.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "LESSON_CLOSED"})
	case errors.Is(err, db.ErrSessionFull):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "SESSION_FULL"})
	case errors.Is(err, db.ErrAlreadyBooked), errors.Is(err, db.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "ALREADY_BOOKED"})
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrNotEnrolled):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "NOT_FOUND"})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

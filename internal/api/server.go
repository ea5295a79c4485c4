// Package api exposes the academy services over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"academy/internal/metrics"
)

const (
	apiKeyHeader    = "x-api-key"
	userIDHeader    = "x-user-id"
	requestIDHeader = "X-Request-ID"
)

// Services bundles what the handlers call. Nil members disable their routes.
type Services struct {
	Lessons  LessonAPI
	Schedule ScheduleAPI
	Progress ProgressAPI
	Sessions SessionAPI
	Exports  ExportAPI
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	apiKey   string
	services Services
	logger   zerolog.Logger
	server   *http.Server
}

// NewHTTPServer builds the server. An empty apiKey disables key checks.
func NewHTTPServer(port int, apiKey string, services Services, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		apiKey:   apiKey,
		services: services,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed and wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/slots/split", s.route("slots_split", s.handleSplit))

	if s.services.Schedule != nil {
		mux.HandleFunc("POST /api/recurring-slots/validate", s.route("recurring_validate", s.handleValidateRecurring))
		mux.HandleFunc("POST /api/recurring-slots", s.route("recurring_create", s.handleCreateRecurring))
		mux.HandleFunc("GET /api/instructors/{id}/slots", s.route("instructor_slots", s.handleInstructorSlots))
	}
	if s.services.Lessons != nil {
		mux.HandleFunc("POST /api/lessons/availability", s.route("lesson_availability", s.handleLessonAvailability))
		mux.HandleFunc("POST /api/lessons", s.route("lesson_book", s.handleBookLesson))
		mux.HandleFunc("GET /api/lessons/{id}/cancellation", s.route("lesson_cancellation", s.handleCancellationPreview))
		mux.HandleFunc("POST /api/lessons/{id}/cancel", s.route("lesson_cancel", s.handleCancelLesson))
		mux.HandleFunc("POST /api/lessons/{id}/urgency", s.route("lesson_urgency", s.handleValidateUrgency))
		mux.HandleFunc("POST /api/lessons/{id}/confirm", s.route("lesson_confirm", s.handleConfirmLesson))
	}
	if s.services.Progress != nil {
		mux.HandleFunc("POST /api/progress/lessons", s.route("progress_complete", s.handleCompleteLesson))
		mux.HandleFunc("GET /api/enrollments/{userID}/{courseID}/progress", s.route("progress_snapshot", s.handleProgressSnapshot))
	}
	if s.services.Sessions != nil {
		mux.HandleFunc("POST /api/sessions/{id}/bookings", s.route("session_book", s.handleBookSession))
		mux.HandleFunc("DELETE /api/sessions/{id}/bookings/{userID}", s.route("session_cancel", s.handleCancelSessionBooking))
		mux.HandleFunc("POST /api/sessions/{id}/attendance", s.route("session_attendance", s.handleAttendance))
	}
	if s.services.Exports != nil {
		mux.HandleFunc("GET /api/users/{id}/export.xlsx", s.route("user_export", s.handleUserExport))
		mux.HandleFunc("GET /api/users/{id}/calendar.ics", s.route("user_calendar", s.handleUserCalendar))
	}

	return s.withRequestLog(s.withAPIKey(mux))
}

// Start blocks serving HTTP until Shutdown.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(name)
		h(w, r)
	}
}

func (s *HTTPServer) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		logger := s.logger.With().Str("request_id", reqID).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

// actorID reads the acting user from the x-user-id header.
func actorID(r *http.Request) (int64, error) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return 0, errors.New("x-user-id header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("x-user-id must be a positive integer")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Extra  any               `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

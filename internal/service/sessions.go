package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"academy/internal/db"
	"academy/internal/events"
	"academy/internal/metrics"
	"academy/internal/model"
	"academy/shared/access"
)

// SessionRepository stores course sessions and their bookings.
type SessionRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetSession(ctx context.Context, id int64) (*model.CourseSession, error)
	GetEnrollment(ctx context.Context, userID, courseID int64) (*model.Enrollment, error)
	BookSession(ctx context.Context, sessionID, userID int64) (*model.SessionBooking, error)
	MarkAttendance(ctx context.Context, sessionID, userID int64, status model.BookingStatus) error
	CancelSessionBooking(ctx context.Context, sessionID, userID int64) error
}

type SessionService struct {
	repo   SessionRepository
	access *access.Service
	cache  SnapshotCache
	bus    EventPublisher
	logger *zerolog.Logger
}

// NewSessionService wires the session service. cache and bus may be nil.
func NewSessionService(repo SessionRepository, cache SnapshotCache, bus EventPublisher, logger *zerolog.Logger) *SessionService {
	l := logger.With().Str("component", "sessions").Logger()
	return &SessionService{
		repo:   repo,
		access: access.NewService(repo, l),
		cache:  cache,
		bus:    bus,
		logger: &l,
	}
}

// Book reserves a spot for an enrolled user.
func (s *SessionService) Book(ctx context.Context, actorID, sessionID, userID int64) (*model.SessionBooking, error) {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetEnrollment(ctx, userID, session.CourseID); err != nil {
		if errors.Is(err, db.ErrNotEnrolled) {
			metrics.IncSessionRejection("not_enrolled")
		}
		return nil, err
	}

	booking, err := s.repo.BookSession(ctx, sessionID, userID)
	switch {
	case errors.Is(err, db.ErrSessionFull):
		metrics.IncSessionRejection("full")
		return nil, err
	case errors.Is(err, db.ErrAlreadyBooked):
		metrics.IncSessionRejection("already_booked")
		return nil, err
	case err != nil:
		return nil, err
	}

	s.invalidate(ctx, userID, session.CourseID)
	if s.bus != nil {
		if err := s.bus.PublishJSON(events.SessionBooked, booking); err != nil {
			s.logger.Error().Err(err).Msg("publish session booking")
		}
	}
	s.logger.Info().
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Msg("session booked")
	return booking, nil
}

// SessionCancellation is the payload of a session.cancelled event.
type SessionCancellation struct {
	SessionID   int64 `json:"session_id"`
	UserID      int64 `json:"user_id"`
	CancelledBy int64 `json:"cancelled_by"`
}

// CancelBooking releases the user's spot. Only BOOKED reservations can be cancelled;
// attended ones are kept for progress.
func (s *SessionService) CancelBooking(ctx context.Context, actorID, sessionID, userID int64) error {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.CancelSessionBooking(ctx, sessionID, userID); err != nil {
		return err
	}

	s.invalidate(ctx, userID, session.CourseID)
	if s.bus != nil {
		payload := SessionCancellation{SessionID: sessionID, UserID: userID, CancelledBy: actorID}
		if err := s.bus.PublishJSON(events.SessionCancelled, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish session cancellation")
		}
	}
	s.logger.Info().
		Int64("session_id", sessionID).
		Int64("user_id", userID).
		Int64("cancelled_by", actorID).
		Msg("session booking cancelled")
	return nil
}

// MarkAttendance records PRESENT or ABSENT. Instructors and staff only.
func (s *SessionService) MarkAttendance(ctx context.Context, actorID, sessionID, userID int64, status model.BookingStatus) error {
	if !status.ValidAttendance() {
		return invalidf("attendance must be %s or %s", model.BookingPresent, model.BookingAbsent)
	}
	if err := s.access.RequireRole(ctx, actorID,
		model.RoleInstructor, model.RoleTeacher, model.RoleSecretary, model.RoleAdmin, model.RoleOwner); err != nil {
		return err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.MarkAttendance(ctx, sessionID, userID, status); err != nil {
		return err
	}
	s.invalidate(ctx, userID, session.CourseID)
	return nil
}

func (s *SessionService) invalidate(ctx context.Context, userID, courseID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID, courseID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("progress cache invalidation failed")
	}
}

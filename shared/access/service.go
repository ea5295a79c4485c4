// Package access provides role based access checks.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"academy/internal/model"
)

// UserRepository loads users for access decisions.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// Service answers who may act on what.
type Service struct {
	users  UserRepository
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(users UserRepository, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// RequireRole fails unless the actor has one of roles.
func (s *Service) RequireRole(ctx context.Context, actorID int64, roles ...model.Role) error {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return fmt.Errorf("loading actor %d: %w", actorID, err)
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	s.logger.Debug().
		Int64("user_id", actorID).
		Str("role", string(actor.Role)).
		Msg("role check failed")
	return &AccessDeniedError{Reason: fmt.Sprintf("role %s is not allowed to do this", actor.Role)}
}

// RequireStaff fails unless the actor is secretary, admin or owner.
func (s *Service) RequireStaff(ctx context.Context, actorID int64) error {
	return s.RequireRole(ctx, actorID, model.RoleSecretary, model.RoleAdmin, model.RoleOwner)
}

// CanActOnLesson allows the lesson's student and instructor, and staff.
func (s *Service) CanActOnLesson(ctx context.Context, actorID int64, lesson *model.ScheduledLesson) error {
	if lesson.Involves(actorID) {
		return nil
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return fmt.Errorf("loading actor %d: %w", actorID, err)
	}
	if actor.Role.IsStaff() {
		return nil
	}
	return &AccessDeniedError{Reason: "only the lesson participants or staff can do this"}
}

// CanActForUser allows users to act for themselves and staff to act for anyone.
func (s *Service) CanActForUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return nil
	}
	return s.RequireStaff(ctx, actorID)
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}

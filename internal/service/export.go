package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"academy/internal/calendar"
	"academy/internal/db"
	"academy/internal/export"
	"academy/internal/model"
	"academy/shared/access"
)

// ExportRepository reads everything needed for personal data exports.
type ExportRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ExportUserData(ctx context.Context, userID int64) (*db.UserData, error)
	ListLessonsForUser(ctx context.Context, userID int64, from time.Time) ([]model.ScheduledLesson, error)
}

type ExportService struct {
	repo         ExportRepository
	access       *access.Service
	calendarName string
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewExportService(repo ExportRepository, calendarName string, logger *zerolog.Logger) *ExportService {
	l := logger.With().Str("component", "export").Logger()
	return &ExportService{
		repo:         repo,
		access:       access.NewService(repo, l),
		calendarName: calendarName,
		logger:       &l,
		now:          time.Now,
	}
}

// UserData writes the user's personal data workbook to w and returns its file name.
func (s *ExportService) UserData(ctx context.Context, actorID, userID int64, w io.Writer) (string, error) {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return "", err
	}
	data, err := s.repo.ExportUserData(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := export.WriteUserData(w, data); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info().Int64("user_id", userID).Int64("requested_by", actorID).Msg("user data exported")
	return export.UserDataFilename(userID, s.now()), nil
}

// Calendar writes an iCalendar feed of the user's lessons from 30 days ago on.
func (s *ExportService) Calendar(ctx context.Context, actorID, userID int64, w io.Writer) error {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return err
	}
	lessons, err := s.repo.ListLessonsForUser(ctx, userID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return fmt.Errorf("load lessons: %w", err)
	}

	names := make(map[int64]string)
	for _, l := range lessons {
		other := l.Counterpart(userID)
		if _, ok := names[other]; ok {
			continue
		}
		if u, err := s.repo.GetUser(ctx, other); err == nil {
			names[other] = u.FullName()
		}
	}

	feed := calendar.NewFeed(s.calendarName, func(id int64) string { return names[id] })
	return feed.Write(w, userID, lessons)
}

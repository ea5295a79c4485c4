package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"academy/internal/events"
	"academy/internal/metrics"
	"academy/internal/model"
	"academy/internal/progress"
	"academy/shared/access"
)

// ProgressRepository reads and writes course progress.
type ProgressRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetEnrollment(ctx context.Context, userID, courseID int64) (*model.Enrollment, error)
	CourseOfLesson(ctx context.Context, lessonID int64) (int64, error)
	CompleteLesson(ctx context.Context, userID, lessonID int64, at time.Time, recompute func(completed, total int) int) (*model.Enrollment, error)
	DistanceLessonIDs(ctx context.Context, courseID int64) ([]int64, error)
	CompletedLessonIDs(ctx context.Context, userID, courseID int64) ([]int64, error)
	SessionBookingCounts(ctx context.Context, userID, courseID int64) (total, present int, err error)
}

// SnapshotCache keeps computed progress snapshots.
type SnapshotCache interface {
	Get(ctx context.Context, userID, courseID int64) (progress.Snapshot, bool)
	Set(ctx context.Context, userID, courseID int64, snap progress.Snapshot)
	Invalidate(ctx context.Context, userID, courseID int64) error
}

type ProgressService struct {
	repo   ProgressRepository
	access *access.Service
	cache  SnapshotCache
	bus    EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

// NewProgressService wires the progress service. cache and bus may be nil.
func NewProgressService(repo ProgressRepository, cache SnapshotCache, bus EventPublisher, logger *zerolog.Logger) *ProgressService {
	l := logger.With().Str("component", "progress").Logger()
	return &ProgressService{
		repo:   repo,
		access: access.NewService(repo, l),
		cache:  cache,
		bus:    bus,
		logger: &l,
		now:    time.Now,
	}
}

// ProgressUpdate is the payload of a progress.updated event.
type ProgressUpdate struct {
	UserID   int64 `json:"user_id"`
	CourseID int64 `json:"course_id"`
	Progress int   `json:"progress"`
}

// MarkLessonComplete records an e-learning lesson as done and stores the new overall
// progress on the enrollment. Completing the same lesson twice changes nothing.
func (s *ProgressService) MarkLessonComplete(ctx context.Context, actorID, userID, lessonID int64) (*model.Enrollment, error) {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return nil, err
	}

	courseID, err := s.repo.CourseOfLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.repo.CompleteLesson(ctx, userID, lessonID, s.now(), progress.OverallAfterCompletion)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID, courseID)
	metrics.IncProgressUpdate()
	if s.bus != nil {
		if err := s.bus.PublishJSON(events.ProgressUpdated, ProgressUpdate{
			UserID:   userID,
			CourseID: courseID,
			Progress: enrollment.Progress,
		}); err != nil {
			s.logger.Error().Err(err).Msg("publish progress update")
		}
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("course_id", courseID).
		Int64("lesson_id", lessonID).
		Int("progress", enrollment.Progress).
		Msg("lesson completed")
	return enrollment, nil
}

// Snapshot returns the read-time progress breakdown for an enrollment. Learners see their
// own progress; staff see anyone's.
func (s *ProgressService) Snapshot(ctx context.Context, actorID, userID, courseID int64) (progress.Snapshot, error) {
	if err := s.access.CanActForUser(ctx, actorID, userID); err != nil {
		return progress.Snapshot{}, err
	}
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, userID, courseID); ok {
			return snap, nil
		}
	}

	enrollment, err := s.repo.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	distance, err := s.repo.DistanceLessonIDs(ctx, courseID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	completed, err := s.repo.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	total, present, err := s.repo.SessionBookingCounts(ctx, userID, courseID)
	if err != nil {
		return progress.Snapshot{}, err
	}

	snap := progress.Aggregate(progress.Input{
		DistanceLessonIDs:  distance,
		CompletedLessonIDs: completed,
		TotalBookings:      total,
		PresentBookings:    present,
		StoredOverall:      enrollment.Progress,
	})
	if s.cache != nil {
		s.cache.Set(ctx, userID, courseID, snap)
	}
	return snap, nil
}

func (s *ProgressService) invalidate(ctx context.Context, userID, courseID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID, courseID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Int64("course_id", courseID).Msg("progress cache invalidation failed")
	}
}

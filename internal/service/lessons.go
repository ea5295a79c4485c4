package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"academy/internal/availability"
	"academy/internal/db"
	"academy/internal/events"
	"academy/internal/metrics"
	"academy/internal/model"
	"academy/internal/policy"
	"academy/internal/slots"
	"academy/shared/access"
)

const dateLayout = "2006-01-02"

// LessonRepository is the storage used by LessonService.
type LessonRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetLesson(ctx context.Context, id int64) (*model.ScheduledLesson, error)
	ListLessonsForUserOnDate(ctx context.Context, userID int64, date time.Time) ([]model.ScheduledLesson, error)
	CreateLessonChecked(ctx context.Context, l *model.ScheduledLesson, verify func(existing []model.ScheduledLesson) error) error
	CancelLesson(ctx context.Context, p db.CancelParams) (*model.ScheduledLesson, error)
	ValidateUrgency(ctx context.Context, lessonID int64, validated bool) (bool, error)
	SetConfirmation(ctx context.Context, lessonID int64, asStudent bool) (*model.ScheduledLesson, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// CancellationNotifier tells the other participant about a cancelled lesson.
type CancellationNotifier interface {
	NotifyCancellation(ctx context.Context, lesson *model.ScheduledLesson, cancelledBy int64) error
}

type LessonService struct {
	repo     LessonRepository
	access   *access.Service
	policies *PolicyHolder
	bus      EventPublisher
	notifier CancellationNotifier
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewLessonService wires the lesson service. bus and notifier may be nil.
func NewLessonService(
	repo LessonRepository,
	policies *PolicyHolder,
	bus EventPublisher,
	notifier CancellationNotifier,
	logger *zerolog.Logger,
) *LessonService {
	l := logger.With().Str("component", "lessons").Logger()
	return &LessonService{
		repo:     repo,
		access:   access.NewService(repo, l),
		policies: policies,
		bus:      bus,
		notifier: notifier,
		logger:   &l,
		now:      time.Now,
	}
}

// BookRequest asks for a one-to-one lesson.
type BookRequest struct {
	ActorID      int64
	StudentID    int64
	InstructorID int64
	Date         string // YYYY-MM-DD
	StartTime    string // HH:MM
	EndTime      string // HH:MM
}

// SlotRequest is a candidate lesson slot for one user.
type SlotRequest struct {
	ActorID   int64
	UserID    int64
	Date      string
	StartTime string
	EndTime   string
}

func (s *LessonService) parseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, value, s.policies.Get().Config().Location)
	if err != nil {
		return time.Time{}, invalidf("date %q must be YYYY-MM-DD", value)
	}
	return d, nil
}

func checkTimes(start, end string) error {
	from, err := slots.ParseClock(start)
	if err != nil {
		return invalidf("start time %q must be HH:MM", start)
	}
	to, err := slots.ParseClock(end)
	if err != nil {
		return invalidf("end time %q must be HH:MM", end)
	}
	if !from.Before(to) {
		return invalidf("start time must be before end time")
	}
	return nil
}

// CheckAvailability reports whether the slot is free in the user's schedule.
func (s *LessonService) CheckAvailability(ctx context.Context, req SlotRequest) (availability.Availability, error) {
	if err := s.access.CanActForUser(ctx, req.ActorID, req.UserID); err != nil {
		return availability.Availability{}, err
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return availability.Availability{}, err
	}
	if err := checkTimes(req.StartTime, req.EndTime); err != nil {
		return availability.Availability{}, err
	}

	existing, err := s.repo.ListLessonsForUserOnDate(ctx, req.UserID, date)
	if err != nil {
		return availability.Availability{}, fmt.Errorf("load lessons: %w", err)
	}
	return availability.IsSlotAvailable(s.now(), availability.Candidate{
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, existing)
}

// Book creates a BOOKED lesson after checking roles, the advance rule and both schedules.
func (s *LessonService) Book(ctx context.Context, req BookRequest) (*model.ScheduledLesson, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := checkTimes(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.StudentID == req.InstructorID {
		return nil, invalidf("student and instructor must differ")
	}

	lesson := &model.ScheduledLesson{
		StudentID:    req.StudentID,
		InstructorID: req.InstructorID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       model.LessonBooked,
	}
	if err := s.access.CanActOnLesson(ctx, req.ActorID, lesson); err != nil {
		return nil, err
	}
	if err := s.access.RequireRole(ctx, req.InstructorID, model.RoleInstructor, model.RoleTeacher); err != nil {
		if access.IsAccessDenied(err) {
			return nil, invalidf("user %d is not an instructor", req.InstructorID)
		}
		return nil, err
	}

	ok, err := s.policies.Get().MeetsMinAdvance(date, req.StartTime)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	if !ok {
		return nil, ErrBookingTooLate
	}

	candidate := availability.Candidate{Date: date, StartTime: req.StartTime, EndTime: req.EndTime}
	err = s.repo.CreateLessonChecked(ctx, lesson, func(existing []model.ScheduledLesson) error {
		av, err := availability.IsSlotAvailable(s.now(), candidate, existing)
		if err != nil {
			return err
		}
		if !av.Available {
			return &UnavailableError{Availability: av}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLessonBooked()
	s.publish(events.LessonBooked, lesson)
	s.logger.Info().
		Int64("lesson_id", lesson.ID).
		Int64("student_id", lesson.StudentID).
		Int64("instructor_id", lesson.InstructorID).
		Str("date", req.Date).
		Str("start", req.StartTime).
		Msg("lesson booked")
	return lesson, nil
}

// PreviewCancellation evaluates the cancellation rule without changing anything.
func (s *LessonService) PreviewCancellation(ctx context.Context, actorID, lessonID int64) (policy.CancellationDecision, error) {
	lesson, err := s.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return policy.CancellationDecision{}, err
	}
	if err := s.access.CanActOnLesson(ctx, actorID, lesson); err != nil {
		return policy.CancellationDecision{}, err
	}
	return s.policies.Get().CanCancelLesson(lesson.Date, lesson.StartTime)
}

// CancelRequest cancels a lesson on behalf of ActorID.
type CancelRequest struct {
	ActorID       int64
	LessonID      int64
	Reason        string
	IsUrgent      bool
	UrgencyReason string
}

// CancelResult is the cancelled lesson and the decision that applied.
type CancelResult struct {
	Lesson       *model.ScheduledLesson      `json:"lesson"`
	Decision     policy.CancellationDecision `json:"-"`
	HourDeducted bool                        `json:"hour_deducted"`
}

// Cancel applies the cancellation policy. A late cancellation by the student costs one
// hour unless a staff member later validates the urgency claim.
func (s *LessonService) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if req.IsUrgent && req.UrgencyReason == "" {
		return nil, invalidf("urgent cancellation needs a reason")
	}

	lesson, err := s.repo.GetLesson(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanActOnLesson(ctx, req.ActorID, lesson); err != nil {
		return nil, err
	}
	if lesson.Status == model.LessonCancelled || lesson.Status == model.LessonCompleted {
		return nil, ErrLessonClosed
	}

	pol := s.policies.Get()
	decision, err := pol.CanCancelLesson(lesson.Date, lesson.StartTime)
	if err != nil {
		return nil, fmt.Errorf("lesson %d: %w", lesson.ID, err)
	}
	if decision.Outcome == policy.OutcomePast {
		return nil, &PolicyError{Decision: decision}
	}

	deduct := false
	if req.ActorID == lesson.StudentID {
		deduct, err = pol.ShouldDeductHour(lesson.Date, lesson.StartTime, req.IsUrgent, false)
		if err != nil {
			return nil, err
		}
	}

	cancelled, err := s.repo.CancelLesson(ctx, db.CancelParams{
		LessonID:      lesson.ID,
		CancelledBy:   req.ActorID,
		Reason:        req.Reason,
		IsUrgent:      req.IsUrgent,
		UrgencyReason: req.UrgencyReason,
		DeductHour:    deduct,
		At:            s.now(),
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLessonCancelled(cancellationOutcome(decision, req.IsUrgent))
	if deduct {
		metrics.IncHourDeducted()
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyCancellation(ctx, cancelled, req.ActorID); err != nil {
			s.logger.Warn().Err(err).Int64("lesson_id", lesson.ID).Msg("cancellation notice failed")
		}
	}
	s.publish(events.LessonCancelled, cancelled)

	s.logger.Info().
		Int64("lesson_id", lesson.ID).
		Int64("cancelled_by", req.ActorID).
		Str("outcome", string(decision.Outcome)).
		Float64("hours_until_lesson", decision.HoursUntilLesson).
		Bool("hour_deducted", deduct).
		Msg("lesson cancelled")

	return &CancelResult{Lesson: cancelled, Decision: decision, HourDeducted: deduct}, nil
}

func cancellationOutcome(d policy.CancellationDecision, urgent bool) string {
	switch {
	case d.Allowed():
		return "free"
	case urgent:
		return "urgent"
	default:
		return "late"
	}
}

// ValidateUrgency lets staff accept or reject an urgency claim. An accepted claim refunds
// the deducted hour.
func (s *LessonService) ValidateUrgency(ctx context.Context, actorID, lessonID int64, validated bool) (bool, error) {
	if err := s.access.RequireStaff(ctx, actorID); err != nil {
		return false, err
	}
	refunded, err := s.repo.ValidateUrgency(ctx, lessonID, validated)
	if err != nil {
		return false, err
	}
	s.logger.Info().
		Int64("lesson_id", lessonID).
		Int64("validated_by", actorID).
		Bool("validated", validated).
		Bool("refunded", refunded).
		Msg("urgency claim reviewed")
	return refunded, nil
}

// Confirm records the actor's confirmation. Only the student and the instructor can confirm.
func (s *LessonService) Confirm(ctx context.Context, actorID, lessonID int64) (*model.ScheduledLesson, policy.ConfirmationStatus, error) {
	lesson, err := s.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, "", err
	}
	if !lesson.Involves(actorID) {
		return nil, "", &access.AccessDeniedError{Reason: "only the student or the instructor can confirm a lesson"}
	}
	if lesson.Status == model.LessonCancelled || lesson.Status == model.LessonCompleted {
		return nil, "", ErrLessonClosed
	}

	updated, err := s.repo.SetConfirmation(ctx, lessonID, actorID == lesson.StudentID)
	if err != nil {
		return nil, "", err
	}

	status := policy.CanConfirmLesson(updated.StudentConfirmed, updated.InstructorConfirmed)
	if status.CanConfirm() {
		s.publish(events.LessonConfirmed, updated)
	}
	return updated, status, nil
}

func (s *LessonService) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("publish event")
	}
}

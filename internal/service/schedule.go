package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"academy/internal/metrics"
	"academy/internal/model"
	"academy/internal/recurrence"
	"academy/internal/slots"
	"academy/shared/access"
)

// ScheduleRepository stores instructor availability.
type ScheduleRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	InsertAvailabilitySlots(ctx context.Context, slots []model.AvailabilitySlot) (int, error)
	ListAvailabilityForDate(ctx context.Context, instructorID int64, date time.Time) ([]model.AvailabilitySlot, error)
	IsSlotBooked(ctx context.Context, instructorID int64, start, end time.Time) (bool, error)
}

type ScheduleService struct {
	repo     ScheduleRepository
	access   *access.Service
	policies *PolicyHolder
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewScheduleService(repo ScheduleRepository, policies *PolicyHolder, logger *zerolog.Logger) *ScheduleService {
	l := logger.With().Str("component", "schedule").Logger()
	return &ScheduleService{
		repo:     repo,
		access:   access.NewService(repo, l),
		policies: policies,
		logger:   &l,
		now:      time.Now,
	}
}

// RecurringSlotsRequest describes a recurring availability window.
type RecurringSlotsRequest struct {
	ActorID           int64
	InstructorID      int64
	StartTime         string
	EndTime           string
	Pattern           string
	DaysOfWeek        []int
	RecurrenceEndDate string // YYYY-MM-DD
}

// RecurringSlotsResult summarises a created series.
type RecurringSlotsResult struct {
	SeriesID    string   `json:"series_id"`
	Occurrences int      `json:"occurrences"`
	Created     int      `json:"created"`
	Truncated   bool     `json:"truncated"`
	Dates       []string `json:"dates"`
}

func (s *ScheduleService) definition(req RecurringSlotsRequest) (recurrence.Definition, error) {
	pattern, err := recurrence.ParsePattern(req.Pattern)
	if err != nil {
		return recurrence.Definition{}, recurrence.InvalidPattern()
	}
	end, err := time.ParseInLocation(dateLayout, req.RecurrenceEndDate, s.policies.Get().Config().Location)
	if err != nil {
		return recurrence.Definition{}, &recurrence.ValidationError{
			Kind:   recurrence.KindInvalidFormat,
			Reason: "recurrence end date must use the YYYY-MM-DD format",
		}
	}
	return recurrence.Definition{
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Pattern:           pattern,
		DaysOfWeek:        recurrence.WeekdaySet(req.DaysOfWeek),
		RecurrenceEndDate: end,
	}, nil
}

// ValidateRecurring returns nil or a *recurrence.ValidationError.
func (s *ScheduleService) ValidateRecurring(req RecurringSlotsRequest) error {
	def, err := s.definition(req)
	if err != nil {
		return err
	}
	return recurrence.Validate(def, s.now())
}

// CreateRecurringSlots validates the definition, expands it from today and stores one
// availability slot per occurrence. Occurrences that already exist are skipped.
func (s *ScheduleService) CreateRecurringSlots(ctx context.Context, req RecurringSlotsRequest) (*RecurringSlotsResult, error) {
	if err := s.access.CanActForUser(ctx, req.ActorID, req.InstructorID); err != nil {
		return nil, err
	}

	def, err := s.definition(req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := recurrence.Validate(def, now); err != nil {
		return nil, err
	}

	y, m, d := now.In(s.policies.Get().Config().Location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.policies.Get().Config().Location)
	res, err := def.Occurrences(today)
	if err != nil {
		return nil, fmt.Errorf("expand recurrence: %w", err)
	}
	metrics.IncRecurrenceExpansion(string(def.Pattern), res.Truncated)

	seriesID := uuid.NewString()
	batch := make([]model.AvailabilitySlot, 0, len(res.Dates))
	dates := make([]string, 0, len(res.Dates))
	for _, date := range res.Dates {
		batch = append(batch, model.AvailabilitySlot{
			InstructorID: req.InstructorID,
			SeriesID:     seriesID,
			Date:         date,
			StartTime:    def.StartTime,
			EndTime:      def.EndTime,
			Pattern:      string(def.Pattern),
		})
		dates = append(dates, date.Format(dateLayout))
	}

	created, err := s.repo.InsertAvailabilitySlots(ctx, batch)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("instructor_id", req.InstructorID).
		Str("series_id", seriesID).
		Str("pattern", string(def.Pattern)).
		Int("occurrences", len(res.Dates)).
		Int("created", created).
		Bool("truncated", res.Truncated).
		Msg("recurring availability created")

	return &RecurringSlotsResult{
		SeriesID:    seriesID,
		Occurrences: len(res.Dates),
		Created:     created,
		Truncated:   res.Truncated,
		Dates:       dates,
	}, nil
}

// AvailableSlots lists the instructor's bookable units on a date. With freeOnly the
// started and booked units are left out.
func (s *ScheduleService) AvailableSlots(ctx context.Context, instructorID int64, date string, freeOnly bool) ([]slots.SlotInfo, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.policies.Get().Config().Location)
	if err != nil {
		return nil, invalidf("date %q must be YYYY-MM-DD", date)
	}

	avail, err := s.repo.ListAvailabilityForDate(ctx, instructorID, day)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	windows := make([]slots.Window, 0, len(avail))
	for _, a := range avail {
		windows = append(windows, slots.Window{StartTime: a.StartTime, EndTime: a.EndTime})
	}

	generated, err := slots.NewGenerator(s.repo).WithClock(s.now).GenerateSlots(ctx, instructorID, day, windows)
	if err != nil {
		return nil, err
	}
	if freeOnly {
		generated = slots.GetAvailableSlots(generated)
	}
	return slots.ToSlotInfo(generated), nil
}

package availability

import (
	"errors"
	"testing"
	"time"

	"academy/internal/model"
	"academy/internal/slots"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now       = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	lessonDay = time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
)

func lesson(id int64, start, end string, status model.LessonStatus) model.ScheduledLesson {
	return model.ScheduledLesson{ID: id, Date: lessonDay, StartTime: start, EndTime: end, Status: status}
}

func TestIsSlotAvailable(t *testing.T) {
	candidate := Candidate{Date: lessonDay, StartTime: "10:00", EndTime: "11:00"}

	tests := []struct {
		name       string
		existing   []model.ScheduledLesson
		available  bool
		reason     string
		conflictID int64
	}{
		{
			name:      "no lessons",
			available: true,
		},
		{
			name:      "touching boundary after",
			existing:  []model.ScheduledLesson{lesson(1, "11:00", "12:00", model.LessonBooked)},
			available: true,
		},
		{
			name:      "touching boundary before",
			existing:  []model.ScheduledLesson{lesson(1, "09:00", "10:00", model.LessonConfirmed)},
			available: true,
		},
		{
			name:       "partial overlap",
			existing:   []model.ScheduledLesson{lesson(7, "10:30", "11:30", model.LessonBooked)},
			available:  false,
			reason:     ReasonOverlaps,
			conflictID: 7,
		},
		{
			name:       "contains candidate",
			existing:   []model.ScheduledLesson{lesson(3, "09:00", "12:00", model.LessonConfirmed)},
			available:  false,
			reason:     ReasonOverlaps,
			conflictID: 3,
		},
		{
			name:      "cancelled lesson ignored",
			existing:  []model.ScheduledLesson{lesson(4, "10:00", "11:00", model.LessonCancelled)},
			available: true,
		},
		{
			name: "other date ignored",
			existing: []model.ScheduledLesson{{
				ID: 5, Date: lessonDay.AddDate(0, 0, 1), StartTime: "10:00", EndTime: "11:00", Status: model.LessonBooked,
			}},
			available: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsSlotAvailable(now, candidate, tt.existing)
			require.NoError(t, err)
			assert.Equal(t, tt.available, got.Available)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.conflictID, got.ConflictingLessonID)
		})
	}
}

func TestIsSlotAvailable_Past(t *testing.T) {
	past := Candidate{Date: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), StartTime: "07:00", EndTime: "08:00"}

	got, err := IsSlotAvailable(now, past, nil)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, ReasonInPast, got.Reason)
}

func TestIsSlotAvailable_Errors(t *testing.T) {
	_, err := IsSlotAvailable(now, Candidate{Date: lessonDay, StartTime: "1000", EndTime: "11:00"}, nil)
	assert.True(t, errors.Is(err, slots.ErrInvalidClock))

	_, err = IsSlotAvailable(now, Candidate{Date: lessonDay, StartTime: "11:00", EndTime: "10:00"}, nil)
	assert.Error(t, err)

	_, err = IsSlotAvailable(now, Candidate{Date: lessonDay, StartTime: "10:00", EndTime: "11:00"},
		[]model.ScheduledLesson{lesson(1, "bad", "11:00", model.LessonBooked)})
	assert.Error(t, err)
}

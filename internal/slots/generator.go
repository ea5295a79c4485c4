package slots

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Slot is a bookable unit placed on a concrete date.
type Slot struct {
	StartTime     time.Time
	EndTime       time.Time
	DurationHours int
	Available     bool
}

// SlotInfo is the JSON view of a slot.
type SlotInfo struct {
	Start         string `json:"start"` // "10:00"
	End           string `json:"end"`   // "12:00"
	DurationHours int    `json:"duration_hours"`
	Available     bool   `json:"available"`
}

// Window is an instructor availability window for one day.
type Window struct {
	StartTime string // "09:00"
	EndTime   string // "17:00"
}

// BookingChecker reports whether an instructor already has a lesson overlapping [start, end).
type BookingChecker interface {
	IsSlotBooked(ctx context.Context, instructorID int64, start, end time.Time) (bool, error)
}

// Generator turns availability windows into bookable slots.
type Generator struct {
	checker BookingChecker
	now     func() time.Time
}

// NewGenerator creates a new slot generator.
func NewGenerator(checker BookingChecker) *Generator {
	return &Generator{checker: checker, now: time.Now}
}

// WithClock overrides the time source used to hide past slots.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// GenerateSlots splits every window of the date into bookable units and marks each
// one available unless it already started or overlaps a non-cancelled lesson.
func (g *Generator) GenerateSlots(ctx context.Context, instructorID int64, date time.Time, windows []Window) ([]Slot, error) {
	var result []Slot
	now := g.now()

	for _, w := range windows {
		units, err := SplitIntoBookable(w.StartTime, w.EndTime)
		if err != nil {
			return nil, fmt.Errorf("split window %s-%s: %w", w.StartTime, w.EndTime, err)
		}

		for _, u := range units {
			slotStart := u.Start.On(date)
			slotEnd := u.End.On(date)

			booked := false
			if g.checker != nil {
				booked, err = g.checker.IsSlotBooked(ctx, instructorID, slotStart, slotEnd)
				if err != nil {
					return nil, fmt.Errorf("check slot: %w", err)
				}
			}

			isPast := slotStart.Before(now)

			result = append(result, Slot{
				StartTime:     slotStart,
				EndTime:       slotEnd,
				DurationHours: u.DurationHours,
				Available:     !booked && !isPast,
			})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

// ToSlotInfo converts slots to SlotInfo for JSON responses.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:         s.StartTime.Format("15:04"),
			End:           s.EndTime.Format("15:04"),
			DurationHours: s.DurationHours,
			Available:     s.Available,
		}
	}
	return result
}

// GetAvailableSlots returns only available slots.
func GetAvailableSlots(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// Overlaps reports whether [start1, end1) and [start2, end2) intersect.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

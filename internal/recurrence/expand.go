// Package recurrence expands recurring availability definitions into calendar dates
// and validates those definitions before they are stored.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences bounds a single expansion.
const MaxOccurrences = 365

// Pattern is the recurrence frequency of a slot definition.
type Pattern string

const (
	Daily   Pattern = "DAILY"
	Weekly  Pattern = "WEEKLY"
	Monthly Pattern = "MONTHLY"
)

// ParsePattern accepts DAILY, WEEKLY or MONTHLY in any case.
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(strings.ToUpper(strings.TrimSpace(s))); p {
	case Daily, Weekly, Monthly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown recurrence pattern %q", s)
	}
}

// WeekdaySet holds ISO weekdays, 1 = Monday .. 7 = Sunday.
type WeekdaySet []int

// Contains reports whether the ISO weekday d is in the set.
func (s WeekdaySet) Contains(d int) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}

// Valid reports whether the set is non-empty and every value is in [1,7].
func (s WeekdaySet) Valid() bool {
	if len(s) == 0 {
		return false
	}
	for _, v := range s {
		if v < 1 || v > 7 {
			return false
		}
	}
	return true
}

// ISOWeekday converts Go's Sunday-first weekday to 1 = Monday .. 7 = Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7 // Sunday = 7
	}
	return wd
}

var isoToRRule = map[int]rrule.Weekday{
	1: rrule.MO,
	2: rrule.TU,
	3: rrule.WE,
	4: rrule.TH,
	5: rrule.FR,
	6: rrule.SA,
	7: rrule.SU,
}

// Result is the outcome of an expansion. Truncated is set when the rule would have
// produced more than MaxOccurrences dates and the tail was dropped.
type Result struct {
	Dates     []time.Time
	Truncated bool
}

// Expand lists the dates from start to end (both inclusive, date precision) on which
// the pattern falls. MONTHLY repeats the day-of-month of start and skips months that
// do not have that day. WEEKLY keeps only the weekdays in days.
func Expand(start, end time.Time, pattern Pattern, days WeekdaySet) (Result, error) {
	first := dateOnly(start)
	last := dateOnly(end.In(start.Location()))

	res := Result{Dates: make([]time.Time, 0)}
	if last.Before(first) {
		return res, nil
	}

	opt := rrule.ROption{
		Dtstart: first,
		Until:   last,
		Wkst:    rrule.MO,
	}

	switch pattern {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		if !days.Valid() {
			return Result{}, fmt.Errorf("weekly recurrence needs weekdays in 1..7, got %v", []int(days))
		}
		opt.Freq = rrule.WEEKLY
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, isoToRRule[d])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
	default:
		return Result{}, fmt.Errorf("unknown recurrence pattern %q", pattern)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return Result{}, fmt.Errorf("build rrule: %w", err)
	}

	next := rule.Iterator()
	for {
		occ, ok := next()
		if !ok {
			break
		}
		if len(res.Dates) == MaxOccurrences {
			res.Truncated = true
			break
		}
		res.Dates = append(res.Dates, occ)
	}

	return res, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

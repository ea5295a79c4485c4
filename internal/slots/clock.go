package slots

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidClock is returned for anything that is not a strict "HH:MM" time of day.
var ErrInvalidClock = errors.New("invalid time of day")

const minutesPerDay = 24 * 60

// Clock is a time of day with minute precision.
type Clock struct {
	minutes int
}

// ParseClock parses a strict "HH:MM" string (00-23 hours, 00-59 minutes, two digits each).
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, ok := twoDigits(s[0], s[1])
	if !ok || hour > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, ok := twoDigits(s[3], s[4])
	if !ok || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{minutes: hour*60 + minute}, nil
}

// MustParseClock is ParseClock for constants and tests.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// ClockFromMinutes builds a clock from minutes since midnight, wrapping at 24h.
func ClockFromMinutes(m int) Clock {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Clock{minutes: m}
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.minutes
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.minutes/60, c.minutes%60)
}

// Before reports whether c is strictly earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	return c.minutes < other.minutes
}

// On combines the clock with the calendar date of d, in d's location.
func (c Clock) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.minutes/60, c.minutes%60, 0, 0, d.Location())
}

// MarshalJSON renders the clock as "HH:MM".
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a strict "HH:MM" string.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MinutesBetween returns end - start in minutes. Negative when end is earlier.
func MinutesBetween(start, end Clock) int {
	return end.minutes - start.minutes
}

// ParseTimeOnDate parses "HH:MM" and places it on the calendar date of date.
func ParseTimeOnDate(date time.Time, hhmm string) (time.Time, error) {
	c, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return c.On(date), nil
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

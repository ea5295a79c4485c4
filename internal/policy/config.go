// Package policy holds the lesson cancellation and confirmation rules.
package policy

import (
	"time"

	"academy/internal/slots"
)

const (
	DefaultCancellationNotice = 48 * time.Hour
	DefaultMinBookingAdvance  = 48 * time.Hour
)

// Config carries the tunable rule values. Zero fields fall back to defaults.
type Config struct {
	// CancellationNotice is how long before a lesson it can still be cancelled free of charge.
	CancellationNotice time.Duration
	// MinBookingAdvance is how far ahead a lesson must be booked.
	MinBookingAdvance time.Duration
	// Location is the timezone lesson dates and times are expressed in.
	Location *time.Location
}

// DefaultConfig returns the 48h/48h rules in local time.
func DefaultConfig() Config {
	return Config{
		CancellationNotice: DefaultCancellationNotice,
		MinBookingAdvance:  DefaultMinBookingAdvance,
		Location:           time.Local,
	}
}

func (c Config) withDefaults() Config {
	if c.CancellationNotice <= 0 {
		c.CancellationNotice = DefaultCancellationNotice
	}
	if c.MinBookingAdvance <= 0 {
		c.MinBookingAdvance = DefaultMinBookingAdvance
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Policy evaluates lesson rules against a clock.
type Policy struct {
	cfg Config
	now func() time.Time
}

// New creates a policy. A nil now uses time.Now.
func New(cfg Config, now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{cfg: cfg.withDefaults(), now: now}
}

// Config returns the effective configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// LessonTime combines a lesson date and an "HH:MM" start into an instant in the policy location.
func (p *Policy) LessonTime(lessonDate time.Time, startTime string) (time.Time, error) {
	y, m, d := lessonDate.Date()
	return slots.ParseTimeOnDate(time.Date(y, m, d, 0, 0, 0, 0, p.cfg.Location), startTime)
}

// MeetsMinAdvance reports whether a lesson starting at startTime on lessonDate can still be booked.
func (p *Policy) MeetsMinAdvance(lessonDate time.Time, startTime string) (bool, error) {
	at, err := p.LessonTime(lessonDate, startTime)
	if err != nil {
		return false, err
	}
	return at.Sub(p.now()) >= p.cfg.MinBookingAdvance, nil
}

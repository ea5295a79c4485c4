package model

import "time"

// BookingStatus is the attendance state of a session booking.
type BookingStatus string

const (
	BookingBooked    BookingStatus = "BOOKED"
	BookingPresent   BookingStatus = "PRESENT"
	BookingAbsent    BookingStatus = "ABSENT"
	BookingCancelled BookingStatus = "CANCELLED"
)

// ValidAttendance reports whether s can be recorded as attendance.
func (s BookingStatus) ValidAttendance() bool {
	return s == BookingPresent || s == BookingAbsent
}

// CourseSession is a capacity-limited, scheduled delivery of a course.
type CourseSession struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `json:"location,omitempty"`
	MaxSpots    int       `json:"max_spots"`
	BookedSpots int       `json:"booked_spots"`
	CreatedAt   time.Time `json:"created_at"`
}

// AvailableSpots never goes below zero.
func (s *CourseSession) AvailableSpots() int {
	if s.BookedSpots >= s.MaxSpots {
		return 0
	}
	return s.MaxSpots - s.BookedSpots
}

// IsFull is true when no spot is left.
func (s *CourseSession) IsFull() bool {
	return s.AvailableSpots() == 0
}

// OccupancyRate is the booked share in percent, 0 for sessions without capacity.
func (s *CourseSession) OccupancyRate() float64 {
	if s.MaxSpots == 0 {
		return 0
	}
	return float64(s.BookedSpots) / float64(s.MaxSpots) * 100
}

// SessionSlot ties a module to a session day.
type SessionSlot struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	ModuleID  int64     `json:"module_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

type SessionBooking struct {
	ID        int64         `json:"id"`
	SessionID int64         `json:"session_id"`
	UserID    int64         `json:"user_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

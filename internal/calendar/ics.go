package calendar

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"academy/internal/model"
)

const productID = "-//academy//lessons//EN"

// uidNamespace keeps event UIDs stable across feed refreshes.
var uidNamespace = uuid.MustParse("5b8a4d53-2f0e-4f5e-9f55-5d1c0b2b1a7e")

// LessonUID returns the stable iCalendar UID of a lesson.
func LessonUID(lessonID int64) string {
	return uuid.NewSHA1(uidNamespace, []byte("lesson:"+strconv.FormatInt(lessonID, 10))).String()
}

// NameFunc resolves a user id to a display name for event summaries.
type NameFunc func(userID int64) string

// Feed renders a user's lessons as an iCalendar feed.
type Feed struct {
	name  string
	names NameFunc
	now   func() time.Time
}

// NewFeed creates a feed with the given calendar name. names may be nil.
func NewFeed(name string, names NameFunc) *Feed {
	return &Feed{name: name, names: names, now: time.Now}
}

// Build creates the calendar for ownerID. Lessons with malformed times are skipped.
func (f *Feed) Build(ownerID int64, lessons []model.ScheduledLesson) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if f.name != "" {
		cal.SetName(f.name)
		cal.SetXWRCalName(f.name)
	}

	stamp := f.now().UTC()
	for i := range lessons {
		l := &lessons[i]
		start, err := l.StartAt()
		if err != nil {
			continue
		}
		end, err := l.EndAt()
		if err != nil {
			continue
		}

		ev := cal.AddEvent(LessonUID(l.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(f.summary(ownerID, l))
		ev.SetStatus(eventStatus(l.Status))
		if !l.UpdatedAt.IsZero() {
			ev.SetModifiedAt(l.UpdatedAt)
		}
		if l.Status == model.LessonCancelled && l.CancellationReason != "" {
			ev.SetDescription("Cancelled: " + l.CancellationReason)
		}
	}
	return cal
}

// Write serializes the feed for ownerID to w.
func (f *Feed) Write(w io.Writer, ownerID int64, lessons []model.ScheduledLesson) error {
	return f.Build(ownerID, lessons).SerializeTo(w)
}

func (f *Feed) summary(ownerID int64, l *model.ScheduledLesson) string {
	other := l.Counterpart(ownerID)
	name := ""
	if f.names != nil {
		name = f.names(other)
	}
	if name == "" {
		name = fmt.Sprintf("user %d", other)
	}
	return "Lesson with " + name
}

func eventStatus(s model.LessonStatus) ical.ObjectStatus {
	switch s {
	case model.LessonConfirmed:
		return ical.ObjectStatusConfirmed
	case model.LessonCancelled:
		return ical.ObjectStatusCancelled
	case model.LessonCompleted:
		return ical.ObjectStatusCompleted
	default:
		return ical.ObjectStatusTentative
	}
}

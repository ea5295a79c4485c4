package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "academy"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)

	lessonsBooked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_booked_total",
			Help:      "Count of one-to-one lessons booked.",
		},
	)

	lessonsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_cancelled_total",
			Help:      "Count of cancelled lessons by outcome (free, late, urgent).",
		},
		[]string{"outcome"},
	)

	hoursDeducted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lesson_hours_deducted_total",
			Help:      "Lesson hours deducted from student balances.",
		},
	)

	recurrenceExpansions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurrence_expansions_total",
			Help:      "Recurring availability expansions by pattern and truncation.",
		},
		[]string{"pattern", "truncated"},
	)

	sessionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_booking_rejections_total",
			Help:      "Session bookings refused by reason.",
		},
		[]string{"reason"},
	)

	progressUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Lesson completions recorded.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			lessonsBooked,
			lessonsCancelled,
			hoursDeducted,
			recurrenceExpansions,
			sessionRejections,
			progressUpdates,
		)
	})
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}

func IncLessonBooked() {
	lessonsBooked.Inc()
}

func IncLessonCancelled(outcome string) {
	lessonsCancelled.WithLabelValues(outcome).Inc()
}

func IncHourDeducted() {
	hoursDeducted.Inc()
}

func IncRecurrenceExpansion(pattern string, truncated bool) {
	t := "false"
	if truncated {
		t = "true"
	}
	recurrenceExpansions.WithLabelValues(pattern, t).Inc()
}

func IncSessionRejection(reason string) {
	sessionRejections.WithLabelValues(reason).Inc()
}

func IncProgressUpdate() {
	progressUpdates.Inc()
}

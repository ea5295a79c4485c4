package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func counterValue(t *testing.T, c prometheus.Collector, name string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestCounters(t *testing.T) {
	before := counterValue(t, hoursDeducted, "academy_lesson_hours_deducted_total")
	IncHourDeducted()
	assert.Equal(t, before+1, counterValue(t, hoursDeducted, "academy_lesson_hours_deducted_total"))

	before = counterValue(t, recurrenceExpansions, "academy_recurrence_expansions_total")
	IncRecurrenceExpansion("WEEKLY", true)
	IncRecurrenceExpansion("DAILY", false)
	assert.Equal(t, before+2, counterValue(t, recurrenceExpansions, "academy_recurrence_expansions_total"))

	before = counterValue(t, lessonsCancelled, "academy_lessons_cancelled_total")
	IncLessonCancelled("late")
	assert.Equal(t, before+1, counterValue(t, lessonsCancelled, "academy_lessons_cancelled_total"))
}

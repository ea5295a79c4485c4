package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	type payload struct {
		LessonID int64 `json:"lesson_id"`
	}

	var got []payload
	bus.Subscribe(LessonCancelled, func(e Event) error {
		var p payload
		if err := e.Decode(&p); err != nil {
			return err
		}
		assert.False(t, e.CreatedAt.IsZero())
		got = append(got, p)
		return nil
	})

	require.NoError(t, bus.PublishJSON(LessonCancelled, payload{LessonID: 9}))
	require.NoError(t, bus.PublishJSON(LessonBooked, payload{LessonID: 10}))

	assert.Equal(t, []payload{{LessonID: 9}}, got)
}

func TestEventBus_HandlerErrors(t *testing.T) {
	bus := NewEventBus()

	var failures int
	bus.OnError(func(e Event, err error) {
		failures++
		assert.Equal(t, ProgressUpdated, e.Type)
	})

	calls := 0
	bus.Subscribe(ProgressUpdated, func(Event) error { calls++; return errors.New("boom") })
	bus.Subscribe(ProgressUpdated, func(Event) error { calls++; return nil })

	bus.Publish(Event{Type: ProgressUpdated})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, failures)
}

func TestEventBus_PublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus()
	err := bus.PublishJSON(LessonBooked, make(chan int))
	assert.Error(t, err)
}

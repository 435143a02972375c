package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(func(e *Event) error {
		received = append(received, e)
		return nil
	}, EventTaskCreated, EventTaskAssigned)

	require.NoError(t, bus.PublishJSON(EventTaskCreated, TaskEventPayload{TaskID: 7, Status: "pending"}))
	require.NoError(t, bus.PublishJSON(EventTaskAssigned, TaskEventPayload{TaskID: 7, Status: "assigned"}))
	require.NoError(t, bus.PublishJSON(EventTaskCompleted, TaskEventPayload{TaskID: 7}))

	require.Len(t, received, 2)
	assert.Equal(t, EventTaskCreated, received[0].Type)
	assert.False(t, received[0].CreatedAt.IsZero())

	var p TaskEventPayload
	require.NoError(t, received[1].Decode(&p))
	assert.Equal(t, int64(7), p.TaskID)
	assert.Equal(t, "assigned", p.Status)
}

func TestEventBus_HandlerErrors(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	calls := 0

	bus.Subscribe(func(*Event) error { calls++; return boom }, EventSyncFinished)
	bus.Subscribe(func(*Event) error { calls++; return nil }, EventSyncFinished)

	err := bus.Publish(&Event{Type: EventSyncFinished})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "a failing handler must not stop the others")
}

func TestEventBus_NilAndUnmarshalable(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventTaskCreated, nil))

	bus = NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "nobody_listens"}))
	assert.Error(t, bus.PublishJSON(EventTaskCreated, make(chan int)))
}

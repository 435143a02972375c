package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventTaskCreated   = "task_created"
	EventTaskAssigned  = "task_assigned"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskCancelled = "task_cancelled"
	EventSyncFinished  = "sync_finished"
)

// TaskEventPayload is the task snapshot handed to subscribers.
type TaskEventPayload struct {
	TaskID        int64     `json:"task_id"`
	BookingID     int64     `json:"booking_id"`
	PropertyID    int64     `json:"property_id"`
	WorkerID      *int64    `json:"worker_id,omitempty"`
	Status        string    `json:"status"`
	ScheduledTime time.Time `json:"scheduled_time"`
	ChangedBy     int64     `json:"changed_by,omitempty"`
	ChangedByType string    `json:"changed_by_type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// SyncEventPayload summarizes one SyncAll batch.
type SyncEventPayload struct {
	RunID     string `json:"run_id"`
	Accounts  int    `json:"accounts"`
	Failed    int    `json:"failed"`
	TasksMade int    `json:"tasks_created"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

type EventHandler func(event *Event) error

// EventBus is an in-process synchronous pub/sub.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs every handler of the event type in registration order and joins their errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes it. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}

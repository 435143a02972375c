package models

import (
	"encoding/json"
	"time"
)

const (
	NotificationTaskAssigned = "task_assigned"
	NotificationTaskReminder = "task_reminder"
)

type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	UserType  ActorType       `json:"user_type"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Data      json.RawMessage `json:"data"`
	Read      bool            `json:"read"`
	SentAt    *time.Time      `json:"sent_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotificationPayload is what producers hand to the dispatcher.
type NotificationPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	TaskID int64  `json:"task_id,omitempty"`
}

package models

import "time"

const (
	WorkerActive   = "active"
	WorkerInactive = "inactive"
)

// Worker is a field cleaner. TotalTasks and CompletedTasks only move on task completion.
type Worker struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Rating         float64   `json:"rating"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	Status         string    `json:"status"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	Language       string    `json:"language"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ActiveTasks    int       `json:"active_tasks"`
}

func (w *Worker) IsActive() bool {
	return w.Status == WorkerActive
}

// ActorType tells whether a caller is an admin or a worker.
type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorWorker ActorType = "worker"
	ActorSystem ActorType = "system"
)

// Actor is the authenticated caller identity handed to the lifecycle manager.
type Actor struct {
	ID   int64
	Type ActorType
}

// SystemActor is used for changes made by background jobs.
var SystemActor = Actor{Type: ActorSystem}

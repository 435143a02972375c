package models

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a cleaning task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// taskTransitions lists every allowed from -> to move. Anything absent is rejected.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskAssigned, TaskCancelled},
	TaskAssigned:   {TaskAssigned, TaskInProgress, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskCancelled},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskAssigned, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EnsureTransition returns a descriptive error when from -> to is not in the transition table.
func EnsureTransition(from, to TaskStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid task status transition %s -> %s", from, to)
	}
	return nil
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

type CleaningTask struct {
	ID                int64           `json:"id"`
	BookingID         int64           `json:"booking_id"`
	PropertyID        int64           `json:"property_id"`
	WorkerID          *int64          `json:"worker_id"`
	ScheduledTime     time.Time       `json:"scheduled_time"`
	StartedAt         *time.Time      `json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at"`
	Status            TaskStatus      `json:"status"`
	Priority          TaskPriority    `json:"priority"`
	EstimatedDuration int             `json:"estimated_duration"` // minutes
	ActualDuration    *int            `json:"actual_duration"`    // minutes
	Notes             string          `json:"notes"`
	WorkerNotes       string          `json:"worker_notes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Checklist         []ChecklistItem `json:"checklist,omitempty"`
}

// AssignedTo reports whether the task is currently owned by workerID.
func (t *CleaningTask) AssignedTo(workerID int64) bool {
	return t.WorkerID != nil && *t.WorkerID == workerID
}

// TaskView is a task joined with the data a cleaner needs on site.
type TaskView struct {
	CleaningTask
	PropertyName       string     `json:"property_name"`
	Address            string     `json:"address"`
	AccessInstructions string     `json:"access_instructions,omitempty"`
	WorkerName         *string    `json:"worker_name"`
	WorkerPhone        *string    `json:"worker_phone"`
	CheckIn            *time.Time `json:"check_in"`
	CheckOut           *time.Time `json:"check_out"`
	GuestName          *string    `json:"guest_name"`
}

type TaskFilter struct {
	Status     TaskStatus
	WorkerID   int64
	PropertyID int64
	StartDate  *time.Time
	EndDate    *time.Time
}

type ChecklistItem struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	Item        string     `json:"item"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	OrderIndex  int        `json:"order_index"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskHistory is an immutable audit row.
type TaskHistory struct {
	ID            int64      `json:"id"`
	TaskID        int64      `json:"task_id"`
	Status        TaskStatus `json:"status"`
	ChangedBy     int64      `json:"changed_by"`
	ChangedByType ActorType  `json:"changed_by_type"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AnalyticsSummary backs the admin dashboard.
type AnalyticsSummary struct {
	TotalAccounts     int                `json:"total_accounts"`
	TodayTasks        int                `json:"today_tasks"`
	AvailableWorkers  int                `json:"available_workers"`
	InProgress        int                `json:"in_progress"`
	ByStatus          map[TaskStatus]int `json:"by_status"`
	Total             int                `json:"total"`
	CompletionRate    float64            `json:"completion_rate"`     // completed / non-cancelled
	AvgActualDuration float64            `json:"avg_actual_duration"` // minutes
}

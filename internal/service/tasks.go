package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/rs/zerolog"
)

// TaskService owns cleaning task state after derivation.
type TaskService struct {
	tasks    domain.TaskRepository
	workers  domain.WorkerRepository
	notifier domain.Notifier
	eventBus domain.EventPublisher
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewTaskService(tasks domain.TaskRepository, workers domain.WorkerRepository, notifier domain.Notifier,
	eventBus domain.EventPublisher, logger *zerolog.Logger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		workers:  workers,
		notifier: notifier,
		eventBus: eventBus,
		now:      time.Now,
		logger:   logger,
	}
}

func requireAdmin(actor models.Actor) error {
	if actor.Type != models.ActorAdmin && actor.Type != models.ActorSystem {
		return fmt.Errorf("%s %d may not manage tasks: %w", actor.Type, actor.ID, domain.ErrForbidden)
	}
	return nil
}

// ownedTask loads the task and checks it belongs to the acting worker.
func (s *TaskService) ownedTask(ctx context.Context, taskID int64, actor models.Actor) (*models.CleaningTask, error) {
	if actor.Type != models.ActorWorker {
		return nil, fmt.Errorf("only the assigned worker may do this: %w", domain.ErrForbidden)
	}
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.AssignedTo(actor.ID) {
		return nil, fmt.Errorf("task %d is not assigned to worker %d: %w", taskID, actor.ID, domain.ErrForbidden)
	}
	return task, nil
}

func ensureTransition(task *models.CleaningTask, to models.TaskStatus) error {
	if err := models.EnsureTransition(task.Status, to); err != nil {
		return fmt.Errorf("task %d: %v: %w", task.ID, err, domain.ErrConflict)
	}
	return nil
}

func (s *TaskService) record(to models.TaskStatus, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrForbidden):
		outcome = "forbidden"
	case errors.Is(err, domain.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.IncTransition(string(to), outcome)
}

func (s *TaskService) publish(eventType string, task *models.CleaningTask, actor models.Actor, notes string) {
	if err := s.eventBus.PublishJSON(eventType, taskEvent(task, actor, notes)); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Int64("task_id", task.ID).Msg("Failed to publish task event")
	}
}

// Assign gives the task to an active worker. A task already assigned may be handed to someone else.
func (s *TaskService) Assign(ctx context.Context, taskID, workerID int64, actor models.Actor) (task *models.TaskView, err error) {
	defer func() { s.record(models.TaskAssigned, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	worker, err := s.workers.GetWorker(ctx, workerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if worker == nil || !worker.IsActive() {
		return nil, fmt.Errorf("worker not found or inactive: %w", domain.ErrNotFound)
	}

	current, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(current, models.TaskAssigned); err != nil {
		return nil, err
	}

	notes := "Assigned to " + worker.Name
	h := &models.TaskHistory{ChangedBy: actor.ID, ChangedByType: actor.Type, Notes: notes}
	if err := s.tasks.AssignTask(ctx, taskID, current.Status, workerID, h); err != nil {
		return nil, err
	}

	view, err := s.tasks.GetTaskView(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskAssigned, &view.CleaningTask, actor, notes)

	payload := models.NotificationPayload{
		Title:  "New cleaning task",
		Body:   fmt.Sprintf("You have been assigned to clean %s on %s", view.PropertyName, view.ScheduledTime.UTC().Format("2006-01-02 15:04 MST")),
		TaskID: taskID,
	}
	if err := s.notifier.Enqueue(ctx, models.NotificationTaskAssigned, workerID, models.ActorWorker, payload); err != nil {
		s.logger.Error().Err(err).Int64("task_id", taskID).Int64("worker_id", workerID).Msg("Failed to enqueue assignment notification")
	}

	s.logger.Info().Int64("task_id", taskID).Int64("worker_id", workerID).Int64("by", actor.ID).Msg("Task assigned")
	return view, nil
}

// Start is called by the assigned worker on arrival.
func (s *TaskService) Start(ctx context.Context, taskID int64, actor models.Actor) (task *models.CleaningTask, err error) {
	defer func() { s.record(models.TaskInProgress, err) }()

	current, err := s.ownedTask(ctx, taskID, actor)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(current, models.TaskInProgress); err != nil {
		return nil, err
	}

	h := &models.TaskHistory{ChangedBy: actor.ID, ChangedByType: actor.Type, Notes: "Cleaning started"}
	if err := s.tasks.StartTask(ctx, taskID, actor.ID, s.now(), h); err != nil {
		return nil, err
	}

	task, err = s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskStarted, task, actor, "")
	return task, nil
}

// Complete closes the task and credits the worker.
func (s *TaskService) Complete(ctx context.Context, taskID int64, actor models.Actor, notes string) (task *models.CleaningTask, err error) {
	defer func() { s.record(models.TaskCompleted, err) }()

	current, err := s.ownedTask(ctx, taskID, actor)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(current, models.TaskCompleted); err != nil {
		return nil, err
	}

	h := &models.TaskHistory{ChangedBy: actor.ID, ChangedByType: actor.Type, Notes: notes}
	task, err = s.tasks.CompleteTask(ctx, taskID, actor.ID, s.now(), notes, h)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskCompleted, task, actor, notes)

	ev := s.logger.Info().Int64("task_id", taskID).Int64("worker_id", actor.ID)
	if task.ActualDuration != nil {
		ev = ev.Int("actual_minutes", *task.ActualDuration)
	}
	ev.Msg("Task completed")
	return task, nil
}

// Cancel stops a task that has not finished yet.
func (s *TaskService) Cancel(ctx context.Context, taskID int64, actor models.Actor, reason string) (task *models.CleaningTask, err error) {
	defer func() { s.record(models.TaskCancelled, err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureTransition(current, models.TaskCancelled); err != nil {
		return nil, err
	}

	h := &models.TaskHistory{ChangedBy: actor.ID, ChangedByType: actor.Type, Notes: reason}
	if err := s.tasks.CancelTask(ctx, taskID, current.Status, h); err != nil {
		return nil, err
	}

	task, err = s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskCancelled, task, actor, reason)
	return task, nil
}

// UpdateChecklistItem ticks or unticks one checklist entry. Workers may only touch their own tasks.
func (s *TaskService) UpdateChecklistItem(ctx context.Context, taskID, itemID int64, completed bool, actor models.Actor) (*models.ChecklistItem, error) {
	if actor.Type == models.ActorWorker {
		if _, err := s.ownedTask(ctx, taskID, actor); err != nil {
			return nil, err
		}
	}
	return s.tasks.UpdateChecklistItem(ctx, taskID, itemID, completed, s.now())
}

func (s *TaskService) GetTask(ctx context.Context, taskID int64) (*models.TaskView, error) {
	return s.tasks.GetTaskView(ctx, taskID)
}

// ListTasks applies the filter; a worker always sees only their own tasks.
func (s *TaskService) ListTasks(ctx context.Context, filter models.TaskFilter, actor models.Actor) ([]*models.TaskView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	if actor.Type == models.ActorWorker {
		filter.WorkerID = actor.ID
	}
	return s.tasks.ListTasks(ctx, filter)
}

func (s *TaskService) History(ctx context.Context, taskID int64) ([]*models.TaskHistory, error) {
	if _, err := s.tasks.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListTaskHistory(ctx, taskID)
}

package service

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/rs/zerolog"
)

// TaskDeriver makes sure every reconciled booking has exactly one cleaning task.
type TaskDeriver struct {
	tasks      domain.TaskRepository
	properties domain.PropertyRepository
	bookings   domain.BookingRepository
	eventBus   domain.EventPublisher
	logger     *zerolog.Logger
}

func NewTaskDeriver(tasks domain.TaskRepository, properties domain.PropertyRepository, bookings domain.BookingRepository,
	eventBus domain.EventPublisher, logger *zerolog.Logger) *TaskDeriver {
	return &TaskDeriver{
		tasks:      tasks,
		properties: properties,
		bookings:   bookings,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// ScheduledCleaning returns when cleaning starts after the given check-out.
func ScheduledCleaning(checkOut time.Time) time.Time {
	return checkOut.UTC().Add(models.CleaningOffset)
}

// DeriveTask returns the booking's task, creating it on first sight. The bool is true when
// this call created it.
func (d *TaskDeriver) DeriveTask(ctx context.Context, booking *models.Booking) (*models.CleaningTask, bool, error) {
	if booking == nil || booking.ID == 0 {
		return nil, false, fmt.Errorf("derive task: booking is not persisted: %w", domain.ErrInvalidInput)
	}

	property, err := d.properties.GetProperty(ctx, booking.PropertyID)
	if err != nil {
		return nil, false, fmt.Errorf("derive task for booking %d: %w", booking.ID, err)
	}

	duration := property.EstimatedCleaningTime
	if duration <= 0 {
		duration = models.DefaultCleaningMinutes
	}

	task := &models.CleaningTask{
		BookingID:         booking.ID,
		PropertyID:        booking.PropertyID,
		ScheduledTime:     ScheduledCleaning(booking.CheckOut),
		Status:            models.TaskPending,
		Priority:          models.PriorityNormal,
		EstimatedDuration: duration,
	}
	task.Notes = d.collisionNote(ctx, booking, task)

	stored, created, err := d.tasks.CreateTaskIfAbsent(ctx, task, models.DefaultChecklist)
	if err != nil {
		return nil, false, fmt.Errorf("derive task for booking %d: %w", booking.ID, err)
	}
	if !created {
		return d.refreshCollisionNote(ctx, booking, stored)
	}

	metrics.IncTaskCreated()
	d.logger.Info().
		Int64("task_id", stored.ID).
		Int64("booking_id", booking.ID).
		Time("scheduled_time", stored.ScheduledTime).
		Msg("Cleaning task created")

	if err := d.eventBus.PublishJSON(events.EventTaskCreated, taskEvent(stored, models.SystemActor, "")); err != nil {
		d.logger.Error().Err(err).Int64("task_id", stored.ID).Msg("Failed to publish task_created")
	}
	return stored, true, nil
}

// refreshCollisionNote re-evaluates the warning of a task that has not started yet. A later
// booking may have arrived after the task was created, or the next guest may have cancelled.
func (d *TaskDeriver) refreshCollisionNote(ctx context.Context, booking *models.Booking, task *models.CleaningTask) (*models.CleaningTask, bool, error) {
	if task.Status != models.TaskPending && task.Status != models.TaskAssigned {
		return task, false, nil
	}

	notes := d.collisionNote(ctx, booking, task)
	if notes == task.Notes {
		return task, false, nil
	}
	updated, err := d.tasks.UpdateTaskNotes(ctx, task.ID, notes)
	if err != nil {
		return nil, false, fmt.Errorf("refresh notes of task %d: %w", task.ID, err)
	}
	if updated {
		task.Notes = notes
	}
	return task, false, nil
}

// collisionNote flags a cleaning window that runs into the next guest's arrival.
// The schedule itself is left as is.
func (d *TaskDeriver) collisionNote(ctx context.Context, booking *models.Booking, task *models.CleaningTask) string {
	next, err := d.bookings.NextCheckIn(ctx, booking.PropertyID, booking.CheckOut)
	if err != nil {
		d.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("Could not look up next check-in")
		return ""
	}
	if next == nil {
		return ""
	}

	end := task.ScheduledTime.Add(time.Duration(task.EstimatedDuration) * time.Minute)
	if !end.After(*next) {
		return ""
	}

	d.logger.Warn().
		Int64("booking_id", booking.ID).
		Int64("property_id", booking.PropertyID).
		Time("cleaning_end", end).
		Time("next_check_in", *next).
		Msg("Cleaning window overlaps next check-in")
	return fmt.Sprintf("WARNING: cleaning ends %s, after next check-in at %s",
		end.UTC().Format(time.RFC3339), next.UTC().Format(time.RFC3339))
}

func taskEvent(t *models.CleaningTask, actor models.Actor, notes string) events.TaskEventPayload {
	return events.TaskEventPayload{
		TaskID:        t.ID,
		BookingID:     t.BookingID,
		PropertyID:    t.PropertyID,
		WorkerID:      t.WorkerID,
		Status:        string(t.Status),
		ScheduledTime: t.ScheduledTime,
		ChangedBy:     actor.ID,
		ChangedByType: string(actor.Type),
		Notes:         notes,
	}
}

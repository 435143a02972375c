package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"turnover/internal/domain"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/rs/zerolog"
)

// reminderHorizon is how far ahead assigned tasks are scanned.
const reminderHorizon = 24 * time.Hour

// ReminderService nudges workers ahead of their assigned tasks.
type ReminderService struct {
	tasks    domain.TaskRepository
	notifier domain.Notifier
	logger   *zerolog.Logger
}

func NewReminderService(tasks domain.TaskRepository, notifier domain.Notifier, logger *zerolog.Logger) *ReminderService {
	return &ReminderService{tasks: tasks, notifier: notifier, logger: logger}
}

// reminderMark picks the reminder due for a task hoursUntil whole hours away, or 0 for none.
// The one-hour tolerance on the 24h mark covers a tick that fires a little late.
func reminderMark(hoursUntil int) int {
	switch {
	case hoursUntil >= models.ReminderMark24h-1:
		return models.ReminderMark24h
	case hoursUntil <= models.ReminderMark2h:
		return models.ReminderMark2h
	default:
		return 0
	}
}

// reminderBody names the threshold, not the exact hours left: a tick inside the tolerance
// window would otherwise say "in 23 hours" or "in 0 hours".
func reminderBody(property string, mark int, scheduled time.Time) string {
	lead := "in 2 hours"
	if mark == models.ReminderMark24h {
		lead = "within 24 hours"
	}
	return fmt.Sprintf("You have a cleaning task at %s %s, scheduled for %s UTC",
		property, lead, scheduled.UTC().Format("2006-01-02 15:04"))
}

// SendDue queues reminders for assigned tasks scheduled in (now, now+24h]. Each (task, mark)
// pair is sent at most once, so repeated ticks are harmless. It returns how many were queued.
func (s *ReminderService) SendDue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	tasks, err := s.tasks.ListTasksForReminder(ctx, now, now.Add(reminderHorizon))
	if err != nil {
		return 0, fmt.Errorf("list tasks for reminder: %w", err)
	}

	sent := 0
	for _, t := range tasks {
		if t.WorkerID == nil {
			continue
		}
		hoursUntil := int(t.ScheduledTime.Sub(now) / time.Hour)
		mark := reminderMark(hoursUntil)
		if mark == 0 {
			continue
		}

		fresh, err := s.tasks.MarkReminderSent(ctx, t.ID, *t.WorkerID, mark, now)
		if err != nil {
			return sent, err
		}
		if !fresh {
			continue
		}

		payload := models.NotificationPayload{
			Title:  "Cleaning task reminder",
			Body:   reminderBody(t.PropertyName, mark, t.ScheduledTime),
			TaskID: t.ID,
		}
		if err := s.notifier.Enqueue(ctx, models.NotificationTaskReminder, *t.WorkerID, models.ActorWorker, payload); err != nil {
			s.logger.Error().Err(err).Int64("task_id", t.ID).Int("mark", mark).Msg("Failed to enqueue reminder")
			continue
		}
		metrics.IncReminder(strconv.Itoa(mark) + "h")
		sent++
	}

	if sent > 0 {
		s.logger.Info().Int("sent", sent).Msg("Task reminders queued")
	}
	return sent, nil
}

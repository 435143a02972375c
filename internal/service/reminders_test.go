package service

import (
	"context"
	"testing"
	"time"

	"turnover/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderMark(t *testing.T) {
	tests := []struct {
		hours int
		want  int
	}{
		{24, models.ReminderMark24h},
		{23, models.ReminderMark24h},
		{22, 0},
		{12, 0},
		{3, 0},
		{2, models.ReminderMark2h},
		{1, models.ReminderMark2h},
		{0, models.ReminderMark2h},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reminderMark(tt.hours), "hours=%d", tt.hours)
	}
}

func TestSendDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	maria := env.worker(t, "Maria")

	// задачи начинаются через час после выезда
	dayAhead := env.task(t, now.Add(23*time.Hour))
	soon := env.task(t, now.Add(1*time.Hour))
	midday := env.task(t, now.Add(11*time.Hour))
	unassigned := env.task(t, now.Add(1*time.Hour+30*time.Minute))
	_ = unassigned

	for _, task := range []*models.CleaningTask{dayAhead, soon, midday} {
		_, err := env.tasks.Assign(ctx, task.ID, maria.ID, admin)
		require.NoError(t, err)
	}
	assigned := env.notifier.count(models.NotificationTaskAssigned)

	sent, err := env.reminders.SendDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, env.notifier.count(models.NotificationTaskReminder))

	reminded := map[int64]string{}
	for _, s := range env.notifier.sent[assigned:] {
		assert.Equal(t, maria.ID, s.RecipientID)
		reminded[s.Payload.TaskID] = s.Payload.Body
	}
	assert.Contains(t, reminded[dayAhead.ID], "within 24 hours, scheduled for 2024-06-02 08:00 UTC")
	assert.Contains(t, reminded[soon.ID], "in 2 hours, scheduled for 2024-06-01 10:00 UTC")

	sent, err = env.reminders.SendDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// тик через полчаса не повторяет напоминания
	sent, err = env.reminders.SendDue(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 2, env.notifier.count(models.NotificationTaskReminder))
}

func TestReminderBody_UsesMark(t *testing.T) {
	scheduled := time.Date(2024, 6, 2, 7, 30, 0, 0, time.UTC)

	// тик в окне допуска: до уборки 23 часа, но напоминание суточное
	body := reminderBody("Loft", reminderMark(23), scheduled)
	assert.Equal(t, "You have a cleaning task at Loft within 24 hours, scheduled for 2024-06-02 07:30 UTC", body)
	assert.NotContains(t, body, "23 hours")

	body = reminderBody("Loft", reminderMark(0), scheduled)
	assert.Equal(t, "You have a cleaning task at Loft in 2 hours, scheduled for 2024-06-02 07:30 UTC", body)
	assert.NotContains(t, body, "0 hours")
}

func TestSendDue_ReassignedWorkerGetsOwnReminder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	maria := env.worker(t, "Maria")
	ivan := env.worker(t, "Ivan")

	task := env.task(t, now.Add(23*time.Hour))
	_, err := env.tasks.Assign(ctx, task.ID, maria.ID, admin)
	require.NoError(t, err)

	sent, err := env.reminders.SendDue(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	_, err = env.tasks.Assign(ctx, task.ID, ivan.ID, admin)
	require.NoError(t, err)

	sent, err = env.reminders.SendDue(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var recipients []int64
	for _, s := range env.notifier.sent {
		if s.Kind == models.NotificationTaskReminder {
			recipients = append(recipients, s.RecipientID)
		}
	}
	assert.Equal(t, []int64{maria.ID, ivan.ID}, recipients)

	sent, err = env.reminders.SendDue(ctx, now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendDue_SkipsStartedTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	maria := env.worker(t, "Maria")

	task := env.task(t, now.Add(30*time.Minute))
	_, err := env.tasks.Assign(ctx, task.ID, maria.ID, admin)
	require.NoError(t, err)
	_, err = env.tasks.Start(ctx, task.ID, workerActor(maria))
	require.NoError(t, err)

	sent, err := env.reminders.SendDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

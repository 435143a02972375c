package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = models.Actor{ID: 1, Type: models.ActorAdmin}

func TestCreateTaskIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scheduled := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	task := seedTask(t, db, scheduled)

	assert.Equal(t, models.TaskPending, task.Status)
	assert.True(t, task.ScheduledTime.Equal(scheduled))
	require.Len(t, task.Checklist, len(models.DefaultChecklist))
	for i, item := range task.Checklist {
		assert.Equal(t, i+1, item.OrderIndex)
		assert.Equal(t, models.DefaultChecklist[i], item.Item)
		assert.False(t, item.Completed)
	}

	again, created, err := db.CreateTaskIfAbsent(ctx, &models.CleaningTask{
		BookingID:     task.BookingID,
		PropertyID:    task.PropertyID,
		ScheduledTime: scheduled.Add(time.Hour),
		Status:        models.TaskPending,
		Priority:      models.PriorityHigh,
	}, models.DefaultChecklist)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, task.ID, again.ID)
	assert.True(t, again.ScheduledTime.Equal(scheduled))
	assert.Len(t, again.Checklist, len(models.DefaultChecklist))
}

func TestTaskLifecycleStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	task := seedTask(t, db, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	ana := seedWorker(t, db, "Ana")
	bob := seedWorker(t, db, "Bob")

	t.Run("AssignFromWrongStatusConflicts", func(t *testing.T) {
		err := db.AssignTask(ctx, task.ID, models.TaskAssigned, ana.ID, history(admin, ""))
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("Assign", func(t *testing.T) {
		require.NoError(t, db.AssignTask(ctx, task.ID, models.TaskPending, ana.ID, history(admin, "Assigned to Ana")))
		got, err := db.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskAssigned, got.Status)
		assert.True(t, got.AssignedTo(ana.ID))
	})

	t.Run("StartByOtherWorkerConflicts", func(t *testing.T) {
		err := db.StartTask(ctx, task.ID, bob.ID, time.Now(), history(models.Actor{ID: bob.ID, Type: models.ActorWorker}, ""))
		assert.True(t, errors.Is(err, domain.ErrConflict))

		got, _ := db.GetTask(ctx, task.ID)
		assert.Equal(t, models.TaskAssigned, got.Status)
		assert.Nil(t, got.StartedAt)
	})

	started := time.Date(2024, 1, 10, 12, 5, 0, 0, time.UTC)
	t.Run("Start", func(t *testing.T) {
		require.NoError(t, db.StartTask(ctx, task.ID, ana.ID, started, history(models.Actor{ID: ana.ID, Type: models.ActorWorker}, "")))
	})

	t.Run("Complete", func(t *testing.T) {
		done, err := db.CompleteTask(ctx, task.ID, ana.ID, started.Add(95*time.Minute+40*time.Second), "all good",
			history(models.Actor{ID: ana.ID, Type: models.ActorWorker}, ""))
		require.NoError(t, err)
		assert.Equal(t, models.TaskCompleted, done.Status)
		require.NotNil(t, done.ActualDuration)
		assert.Equal(t, 95, *done.ActualDuration)
		assert.Equal(t, "all good", done.WorkerNotes)

		w, err := db.GetWorker(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, w.TotalTasks)
		assert.Equal(t, 1, w.CompletedTasks)
	})

	t.Run("CompleteTwiceConflicts", func(t *testing.T) {
		_, err := db.CompleteTask(ctx, task.ID, ana.ID, time.Now(), "", history(admin, ""))
		assert.True(t, errors.Is(err, domain.ErrConflict))

		w, _ := db.GetWorker(ctx, ana.ID)
		assert.Equal(t, 1, w.CompletedTasks)
	})

	t.Run("HistoryIsAppendOnly", func(t *testing.T) {
		hist, err := db.ListTaskHistory(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, hist, 3)
		assert.Equal(t, models.TaskAssigned, hist[0].Status)
		assert.Equal(t, "Assigned to Ana", hist[0].Notes)
		assert.Equal(t, models.TaskInProgress, hist[1].Status)
		assert.Equal(t, models.TaskCompleted, hist[2].Status)
		assert.Equal(t, models.ActorWorker, hist[2].ChangedByType)
	})
}

func TestCancelTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	task := seedTask(t, db, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	require.NoError(t, db.CancelTask(ctx, task.ID, models.TaskPending, history(admin, "guest cancelled")))
	err := db.CancelTask(ctx, task.ID, models.TaskPending, history(admin, ""))
	assert.True(t, errors.Is(err, domain.ErrConflict))

	hist, err := db.ListTaskHistory(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "guest cancelled", hist[0].Notes)
}

func TestUpdateChecklistItem(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	task := seedTask(t, db, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	other := seedTask(t, db, time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC))
	itemID := task.Checklist[0].ID

	at := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	item, err := db.UpdateChecklistItem(ctx, task.ID, itemID, true, at)
	require.NoError(t, err)
	assert.True(t, item.Completed)
	require.NotNil(t, item.CompletedAt)
	assert.True(t, item.CompletedAt.Equal(at))

	item, err = db.UpdateChecklistItem(ctx, task.ID, itemID, false, at)
	require.NoError(t, err)
	assert.False(t, item.Completed)
	assert.Nil(t, item.CompletedAt)

	_, err = db.UpdateChecklistItem(ctx, other.ID, itemID, true, at)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	got, _ := db.GetTask(ctx, task.ID)
	assert.Equal(t, models.TaskPending, got.Status)
}

func TestListTasksAndViews(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	late := seedTask(t, db, day.Add(15*time.Hour))
	early := seedTask(t, db, day.Add(9*time.Hour))
	ana := seedWorker(t, db, "Ana")
	require.NoError(t, db.AssignTask(ctx, late.ID, models.TaskPending, ana.ID, history(admin, "")))

	all, err := db.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)
	assert.Len(t, all[0].Checklist, len(models.DefaultChecklist))

	mine, err := db.ListTasks(ctx, models.TaskFilter{WorkerID: ana.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].WorkerName)
	assert.Equal(t, "Ana", *mine[0].WorkerName)

	pending, err := db.ListTasks(ctx, models.TaskFilter{Status: models.TaskPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].WorkerName)

	from, to := day.Add(10*time.Hour), day.Add(20*time.Hour)
	ranged, err := db.ListTasks(ctx, models.TaskFilter{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, late.ID, ranged[0].ID)

	view, err := db.GetTaskView(ctx, late.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, view.PropertyName)
	require.NotNil(t, view.CheckOut)
	require.NotNil(t, view.GuestName)

	_, err = db.GetTaskView(ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReminderBookkeeping(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	inWindow := seedTask(t, db, now.Add(24*time.Hour))
	tooFar := seedTask(t, db, now.Add(25*time.Hour))
	unassigned := seedTask(t, db, now.Add(2*time.Hour))
	ana := seedWorker(t, db, "Ana")
	require.NoError(t, db.AssignTask(ctx, inWindow.ID, models.TaskPending, ana.ID, history(admin, "")))
	require.NoError(t, db.AssignTask(ctx, tooFar.ID, models.TaskPending, ana.ID, history(admin, "")))
	_ = unassigned

	due, err := db.ListTasksForReminder(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inWindow.ID, due[0].ID)

	first, err := db.MarkReminderSent(ctx, inWindow.ID, ana.ID, models.ReminderMark24h, now)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := db.MarkReminderSent(ctx, inWindow.ID, ana.ID, models.ReminderMark24h, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second)

	other, err := db.MarkReminderSent(ctx, inWindow.ID, ana.ID, models.ReminderMark2h, now)
	require.NoError(t, err)
	assert.True(t, other)

	bo := seedWorker(t, db, "Bo")
	handedOver, err := db.MarkReminderSent(ctx, inWindow.ID, bo.ID, models.ReminderMark24h, now)
	require.NoError(t, err)
	assert.True(t, handedOver, "a new assignee is tracked separately")
}

func TestAnalyticsSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	a := seedTask(t, db, day.Add(10*time.Hour))
	b := seedTask(t, db, day.Add(11*time.Hour))
	c := seedTask(t, db, day.Add(35*time.Hour))
	ana := seedWorker(t, db, "Ana")
	seedWorker(t, db, "Bob")
	actor := models.Actor{ID: ana.ID, Type: models.ActorWorker}

	require.NoError(t, db.AssignTask(ctx, a.ID, models.TaskPending, ana.ID, history(admin, "")))
	require.NoError(t, db.StartTask(ctx, a.ID, ana.ID, day.Add(10*time.Hour), history(actor, "")))
	_, err := db.CompleteTask(ctx, a.ID, ana.ID, day.Add(11*time.Hour), "", history(actor, ""))
	require.NoError(t, err)
	require.NoError(t, db.CancelTask(ctx, b.ID, models.TaskPending, history(admin, "")))
	require.NoError(t, db.AssignTask(ctx, c.ID, models.TaskPending, ana.ID, history(admin, "")))
	require.NoError(t, db.StartTask(ctx, c.ID, ana.ID, day.Add(12*time.Hour), history(actor, "")))

	s, err := db.AnalyticsSummary(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalAccounts)
	assert.Equal(t, 2, s.TodayTasks)
	assert.Equal(t, 1, s.AvailableWorkers)
	assert.Equal(t, 1, s.InProgress)
	assert.Equal(t, 3, s.Total)
	assert.InDelta(t, 0.5, s.CompletionRate, 0.0001)
	assert.InDelta(t, 60, s.AvgActualDuration, 0.0001)
}

func TestConcurrentDeriveSingleTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	acc := seedAccount(t, db, "1")
	p := seedProperty(t, db, acc.ID, "L1")
	b := seedBooking(t, db, p, "R1", time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC))

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, _, err := db.CreateTaskIfAbsent(ctx, &models.CleaningTask{
				BookingID: b.ID, PropertyID: p.ID, ScheduledTime: b.CheckOut.Add(time.Hour),
				Status: models.TaskPending, Priority: models.PriorityNormal, EstimatedDuration: 120,
			}, models.DefaultChecklist)
			if assert.NoError(t, err) {
				ids <- task.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}

	tasks, err := db.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Len(t, tasks[0].Checklist, len(models.DefaultChecklist))
}

func TestUpdateTaskNotes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	task := seedTask(t, db, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	updated, err := db.UpdateTaskNotes(ctx, task.ID, "WARNING: overlap")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = db.UpdateTaskNotes(ctx, task.ID, "WARNING: overlap")
	require.NoError(t, err)
	assert.False(t, updated, "unchanged notes are not rewritten")

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "WARNING: overlap", got.Notes)

	require.NoError(t, db.CancelTask(ctx, task.ID, models.TaskPending, history(admin, "")))
	updated, err = db.UpdateTaskNotes(ctx, task.ID, "")
	require.NoError(t, err)
	assert.False(t, updated, "closed tasks keep their notes")
}

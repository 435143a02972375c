package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const taskColumns = `t.id, t.booking_id, t.property_id, t.worker_id, t.scheduled_time, t.started_at, t.completed_at,
                     t.status, t.priority, t.estimated_duration, t.actual_duration, t.notes, t.worker_notes,
                     t.created_at, t.updated_at`

const taskViewFrom = `FROM cleaning_tasks t
              JOIN properties p ON p.id = t.property_id
              LEFT JOIN workers w ON w.id = t.worker_id
              LEFT JOIN bookings b ON b.id = t.booking_id`

func taskDest(t *models.CleaningTask) []interface{} {
	return []interface{}{
		&t.ID, &t.BookingID, &t.PropertyID, &t.WorkerID, &t.ScheduledTime, &t.StartedAt, &t.CompletedAt,
		&t.Status, &t.Priority, &t.EstimatedDuration, &t.ActualDuration, &t.Notes, &t.WorkerNotes,
		&t.CreatedAt, &t.UpdatedAt,
	}
}

func taskViewDest(v *models.TaskView) []interface{} {
	return append(taskDest(&v.CleaningTask),
		&v.PropertyName, &v.Address, &v.AccessInstructions, &v.WorkerName, &v.WorkerPhone,
		&v.CheckIn, &v.CheckOut, &v.GuestName)
}

const taskViewColumns = taskColumns + `, p.name, p.address, p.access_instructions, w.name, w.phone,
                     b.check_in, b.check_out, b.guest_name`

// CreateTaskIfAbsent inserts the task with its checklist unless the booking already has one.
// It returns the stored task and whether this call created it.
func (db *DB) CreateTaskIfAbsent(ctx context.Context, task *models.CleaningTask, checklist []string) (*models.CleaningTask, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := utc(time.Now())
	query := `INSERT INTO cleaning_tasks (booking_id, property_id, scheduled_time, status, priority,
                                          estimated_duration, notes, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(booking_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, query,
		task.BookingID, task.PropertyID, utc(task.ScheduledTime), task.Status, task.Priority,
		task.EstimatedDuration, task.Notes, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert task for booking %d: %w", task.BookingID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if inserted == 0 {
		existing, err := getTaskByBooking(ctx, tx, task.BookingID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, tx.Commit()
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, item := range checklist {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_checklist_items (task_id, item, completed, order_index, created_at) VALUES (?, ?, 0, ?, ?)`,
			id, item, i+1, now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to insert checklist item: %w", err)
		}
	}

	created, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit task: %w", err)
	}
	return created, true, nil
}

// UpdateTaskNotes rewrites the planning notes of a task that has not started yet.
// It reports false when the notes were already equal or the task has moved on.
func (db *DB) UpdateTaskNotes(ctx context.Context, taskID int64, notes string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE cleaning_tasks SET notes = ?, updated_at = ?
         WHERE id = ? AND notes <> ? AND status IN (?, ?)`,
		notes, utc(time.Now()), taskID, notes, models.TaskPending, models.TaskAssigned)
	if err != nil {
		return false, fmt.Errorf("failed to update notes of task %d: %w", taskID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func getTaskByBooking(ctx context.Context, q querier, bookingID int64) (*models.CleaningTask, error) {
	var t models.CleaningTask
	query := `SELECT ` + taskColumns + ` FROM cleaning_tasks t WHERE t.booking_id = ?`
	if err := q.QueryRowContext(ctx, query, bookingID).Scan(taskDest(&t)...); err != nil {
		return nil, notFound(err, "task for booking %d", bookingID)
	}
	items, err := loadChecklist(ctx, q, t.ID)
	if err != nil {
		return nil, err
	}
	t.Checklist = items
	return &t, nil
}

func getTask(ctx context.Context, q querier, id int64) (*models.CleaningTask, error) {
	var t models.CleaningTask
	query := `SELECT ` + taskColumns + ` FROM cleaning_tasks t WHERE t.id = ?`
	if err := q.QueryRowContext(ctx, query, id).Scan(taskDest(&t)...); err != nil {
		return nil, notFound(err, "task %d", id)
	}
	items, err := loadChecklist(ctx, q, id)
	if err != nil {
		return nil, err
	}
	t.Checklist = items
	return &t, nil
}

func loadChecklist(ctx context.Context, q querier, taskID int64) ([]models.ChecklistItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, task_id, item, completed, completed_at, order_index, created_at
         FROM task_checklist_items WHERE task_id = ? ORDER BY order_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist: %w", err)
	}
	defer rows.Close()

	var items []models.ChecklistItem
	for rows.Next() {
		var it models.ChecklistItem
		if err := rows.Scan(&it.ID, &it.TaskID, &it.Item, &it.Completed, &it.CompletedAt, &it.OrderIndex, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.CleaningTask, error) {
	return getTask(ctx, db, id)
}

func (db *DB) GetTaskByBooking(ctx context.Context, bookingID int64) (*models.CleaningTask, error) {
	return getTaskByBooking(ctx, db, bookingID)
}

// GetTaskView returns the task with checklist, property access details, worker and booking summary.
func (db *DB) GetTaskView(ctx context.Context, id int64) (*models.TaskView, error) {
	var v models.TaskView
	query := `SELECT ` + taskViewColumns + ` ` + taskViewFrom + ` WHERE t.id = ?`
	if err := db.QueryRowContext(ctx, query, id).Scan(taskViewDest(&v)...); err != nil {
		return nil, notFound(err, "task %d", id)
	}
	items, err := loadChecklist(ctx, db, id)
	if err != nil {
		return nil, err
	}
	v.Checklist = items
	return &v, nil
}

// ListTasks returns tasks matching the filter ordered by scheduled time, each with its checklist.
func (db *DB) ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.TaskView, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.WorkerID != 0 {
		where = append(where, "t.worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if f.PropertyID != 0 {
		where = append(where, "t.property_id = ?")
		args = append(args, f.PropertyID)
	}
	if f.StartDate != nil {
		where = append(where, "t.scheduled_time >= ?")
		args = append(args, utc(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "t.scheduled_time <= ?")
		args = append(args, utc(*f.EndDate))
	}

	query := `SELECT ` + taskViewColumns + ` ` + taskViewFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.scheduled_time ASC, t.id ASC"

	tasks, err := db.queryTaskViews(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for _, v := range tasks {
		if v.Checklist, err = loadChecklist(ctx, db, v.ID); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (db *DB) queryTaskViews(ctx context.Context, query string, args ...interface{}) ([]*models.TaskView, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.TaskView
	for rows.Next() {
		v := &models.TaskView{}
		if err := rows.Scan(taskViewDest(v)...); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, h *models.TaskHistory) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO task_history (task_id, status, changed_by, changed_by_type, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.TaskID, h.Status, h.ChangedBy, h.ChangedByType, h.Notes, utc(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert task history: %w", err)
	}
	h.ID, _ = result.LastInsertId()
	return nil
}

// conditionalUpdate runs a guarded UPDATE and turns zero affected rows into ErrConflict.
func conditionalUpdate(ctx context.Context, tx *sql.Tx, taskID int64, query string, args ...interface{}) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", taskID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %d changed concurrently: %w", taskID, domain.ErrConflict)
	}
	return nil
}

// withHistory runs fn and appends h in one transaction.
func (db *DB) withHistory(ctx context.Context, h *models.TaskHistory, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, h); err != nil {
		return err
	}
	return tx.Commit()
}

// AssignTask moves the task from the expected status to assigned with the given worker.
func (db *DB) AssignTask(ctx context.Context, taskID int64, from models.TaskStatus, workerID int64, h *models.TaskHistory) error {
	now := utc(time.Now())
	h.TaskID, h.Status, h.CreatedAt = taskID, models.TaskAssigned, now
	return db.withHistory(ctx, h, func(tx *sql.Tx) error {
		return conditionalUpdate(ctx, tx, taskID,
			`UPDATE cleaning_tasks SET worker_id = ?, status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			workerID, models.TaskAssigned, now, taskID, from)
	})
}

// StartTask moves an assigned task owned by workerID to in_progress.
func (db *DB) StartTask(ctx context.Context, taskID, workerID int64, at time.Time, h *models.TaskHistory) error {
	at = utc(at)
	h.TaskID, h.Status, h.CreatedAt = taskID, models.TaskInProgress, at
	return db.withHistory(ctx, h, func(tx *sql.Tx) error {
		return conditionalUpdate(ctx, tx, taskID,
			`UPDATE cleaning_tasks SET status = ?, started_at = ?, updated_at = ?
             WHERE id = ? AND status = ? AND worker_id = ?`,
			models.TaskInProgress, at, at, taskID, models.TaskAssigned, workerID)
	})
}

// CompleteTask finishes an in-progress task owned by workerID and bumps the worker counters
// in the same transaction.
func (db *DB) CompleteTask(ctx context.Context, taskID, workerID int64, at time.Time, notes string, h *models.TaskHistory) (*models.CleaningTask, error) {
	at = utc(at)
	h.TaskID, h.Status, h.CreatedAt = taskID, models.TaskCompleted, at
	err := db.withHistory(ctx, h, func(tx *sql.Tx) error {
		var startedAt *time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT started_at FROM cleaning_tasks WHERE id = ? AND status = ? AND worker_id = ?`,
			taskID, models.TaskInProgress, workerID).Scan(&startedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %d changed concurrently: %w", taskID, domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to read task %d: %w", taskID, err)
		}

		var actual *int
		if startedAt != nil {
			minutes := int(at.Sub(*startedAt) / time.Minute)
			if minutes < 0 {
				minutes = 0
			}
			actual = &minutes
		}

		err = conditionalUpdate(ctx, tx, taskID,
			`UPDATE cleaning_tasks SET status = ?, completed_at = ?, actual_duration = ?, worker_notes = ?, updated_at = ?
             WHERE id = ? AND status = ? AND worker_id = ?`,
			models.TaskCompleted, at, actual, notes, at, taskID, models.TaskInProgress, workerID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE workers SET total_tasks = total_tasks + 1, completed_tasks = completed_tasks + 1, updated_at = ? WHERE id = ?`,
			at, workerID)
		if err != nil {
			return fmt.Errorf("failed to update worker %d stats: %w", workerID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetTask(ctx, taskID)
}

// CancelTask moves the task from the expected non-terminal status to cancelled.
func (db *DB) CancelTask(ctx context.Context, taskID int64, from models.TaskStatus, h *models.TaskHistory) error {
	now := utc(time.Now())
	h.TaskID, h.Status, h.CreatedAt = taskID, models.TaskCancelled, now
	return db.withHistory(ctx, h, func(tx *sql.Tx) error {
		return conditionalUpdate(ctx, tx, taskID,
			`UPDATE cleaning_tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.TaskCancelled, now, taskID, from)
	})
}

// UpdateChecklistItem sets the completion flag of an item that must belong to taskID.
func (db *DB) UpdateChecklistItem(ctx context.Context, taskID, itemID int64, completed bool, at time.Time) (*models.ChecklistItem, error) {
	var completedAt *time.Time
	if completed {
		u := utc(at)
		completedAt = &u
	}
	result, err := db.ExecContext(ctx,
		`UPDATE task_checklist_items SET completed = ?, completed_at = ? WHERE id = ? AND task_id = ?`,
		completed, completedAt, itemID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to update checklist item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("checklist item %d of task %d: %w", itemID, taskID, domain.ErrNotFound)
	}

	var it models.ChecklistItem
	err = db.QueryRowContext(ctx,
		`SELECT id, task_id, item, completed, completed_at, order_index, created_at FROM task_checklist_items WHERE id = ?`,
		itemID).Scan(&it.ID, &it.TaskID, &it.Item, &it.Completed, &it.CompletedAt, &it.OrderIndex, &it.CreatedAt)
	if err != nil {
		return nil, notFound(err, "checklist item %d", itemID)
	}
	return &it, nil
}

func (db *DB) ListTaskHistory(ctx context.Context, taskID int64) ([]*models.TaskHistory, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, task_id, status, changed_by, changed_by_type, notes, created_at
         FROM task_history WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task history: %w", err)
	}
	defer rows.Close()

	var out []*models.TaskHistory
	for rows.Next() {
		h := &models.TaskHistory{}
		if err := rows.Scan(&h.ID, &h.TaskID, &h.Status, &h.ChangedBy, &h.ChangedByType, &h.Notes, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListTasksForReminder returns assigned tasks scheduled in (from, to].
func (db *DB) ListTasksForReminder(ctx context.Context, from, to time.Time) ([]*models.TaskView, error) {
	query := `SELECT ` + taskViewColumns + ` ` + taskViewFrom + `
              WHERE t.status = ? AND t.worker_id IS NOT NULL AND t.scheduled_time > ? AND t.scheduled_time <= ?
              ORDER BY t.scheduled_time ASC`
	return db.queryTaskViews(ctx, query, models.TaskAssigned, utc(from), utc(to))
}

// MarkReminderSent records that the reminder for (task, worker, mark) went out. It returns false
// when it had already been recorded. A worker taking over a task gets their own reminders.
func (db *DB) MarkReminderSent(ctx context.Context, taskID, workerID int64, mark int, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_reminders (task_id, worker_id, mark, sent_at) VALUES (?, ?, ?, ?)`,
		taskID, workerID, mark, utc(at))
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// AnalyticsSummary aggregates dashboard counters. Today's tasks are those scheduled in [dayStart, dayEnd).
func (db *DB) AnalyticsSummary(ctx context.Context, dayStart, dayEnd time.Time) (*models.AnalyticsSummary, error) {
	s := &models.AnalyticsSummary{ByStatus: make(map[models.TaskStatus]int)}

	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE status = ?`, models.AccountActive).
		Scan(&s.TotalAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cleaning_tasks WHERE scheduled_time >= ? AND scheduled_time < ?`,
		utc(dayStart), utc(dayEnd)).Scan(&s.TodayTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's tasks: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workers WHERE status = ? AND id NOT IN (
             SELECT worker_id FROM cleaning_tasks WHERE status = ? AND worker_id IS NOT NULL)`,
		models.WorkerActive, models.TaskInProgress).Scan(&s.AvailableWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to count available workers: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM cleaning_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		s.ByStatus[status] = n
		s.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.InProgress = s.ByStatus[models.TaskInProgress]

	if active := s.Total - s.ByStatus[models.TaskCancelled]; active > 0 {
		s.CompletionRate = float64(s.ByStatus[models.TaskCompleted]) / float64(active)
	}

	var avg sql.NullFloat64
	err = db.QueryRowContext(ctx,
		`SELECT AVG(actual_duration) FROM cleaning_tasks WHERE status = ? AND actual_duration IS NOT NULL`,
		models.TaskCompleted).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average durations: %w", err)
	}
	s.AvgActualDuration = avg.Float64
	return s, nil
}

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
)

const workerColumns = `w.id, w.name, COALESCE(w.email, ''), w.phone, w.rating, w.total_tasks, w.completed_tasks, w.status,
                       w.telegram_chat_id, w.language, w.created_at, w.updated_at`

func workerDest(w *models.Worker) []interface{} {
	return []interface{}{
		&w.ID, &w.Name, &w.Email, &w.Phone, &w.Rating, &w.TotalTasks, &w.CompletedTasks, &w.Status,
		&w.TelegramChatID, &w.Language, &w.CreatedAt, &w.UpdatedAt,
	}
}

// CreateWorker registers a cleaner. Email is optional; an empty one is stored as NULL so it never collides.
func (db *DB) CreateWorker(ctx context.Context, w *models.Worker) error {
	now := utc(time.Now())
	if w.Status == "" {
		w.Status = models.WorkerActive
	}
	if w.Language == "" {
		w.Language = "en"
	}
	query := `INSERT INTO workers (name, email, phone, rating, status, telegram_chat_id, language, created_at, updated_at)
              VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		w.Name, strings.TrimSpace(w.Email), w.Phone, w.Rating, w.Status, w.TelegramChatID, w.Language, now, now)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	w.ID = id
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

func (db *DB) GetWorker(ctx context.Context, id int64) (*models.Worker, error) {
	var w models.Worker
	query := `SELECT ` + workerColumns + ` FROM workers w WHERE w.id = ?`
	if err := db.QueryRowContext(ctx, query, id).Scan(workerDest(&w)...); err != nil {
		return nil, notFound(err, "worker %d", id)
	}
	return &w, nil
}

// ListActiveWorkers returns active workers with their count of assigned and in-progress tasks.
func (db *DB) ListActiveWorkers(ctx context.Context) ([]*models.Worker, error) {
	query := `SELECT ` + workerColumns + `,
                     (SELECT COUNT(*) FROM cleaning_tasks t WHERE t.worker_id = w.id AND t.status IN (?, ?))
              FROM workers w WHERE w.status = ? ORDER BY w.name`
	rows, err := db.QueryContext(ctx, query, models.TaskAssigned, models.TaskInProgress, models.WorkerActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w := &models.Worker{}
		if err := rows.Scan(append(workerDest(w), &w.ActiveTasks)...); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (db *DB) SetWorkerStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE workers SET status = ?, updated_at = ? WHERE id = ?`,
		status, utc(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("worker %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"turnover/internal/models"
)

func (db *DB) RecordSyncRun(ctx context.Context, res *models.AccountSyncResult) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sync_runs (run_id, account_id, status, listings_count, reservations_count, skipped_count,
                                tasks_created, error, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.AccountID, res.Status, res.ListingsCount, res.ReservationsCount, res.SkippedCount,
		res.TasksCreated, res.Error, utc(res.StartedAt), utc(res.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns the most recent per-account sync results.
func (db *DB) ListSyncRuns(ctx context.Context, limit int) ([]models.AccountSyncResult, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT s.run_id, s.account_id, COALESCE(a.name, ''), s.status, s.listings_count, s.reservations_count,
                s.skipped_count, s.tasks_created, s.error, s.started_at, s.finished_at
         FROM sync_runs s LEFT JOIN accounts a ON a.external_account_id = s.account_id
         ORDER BY s.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var out []models.AccountSyncResult
	for rows.Next() {
		var r models.AccountSyncResult
		err := rows.Scan(&r.RunID, &r.AccountID, &r.Name, &r.Status, &r.ListingsCount, &r.ReservationsCount,
			&r.SkippedCount, &r.TasksCreated, &r.Error, &r.StartedAt, &r.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

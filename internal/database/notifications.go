package database

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	now := utc(time.Now())
	data := string(n.Data)
	if data == "" {
		data = "{}"
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, user_type, type, title, body, data, is_read, sent_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		n.UserID, n.UserType, n.Type, n.Title, n.Body, data, utcPtr(n.SentAt), now)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	return nil
}

// ListNotifications returns the newest notifications of a recipient.
func (db *DB) ListNotifications(ctx context.Context, userID int64, userType models.ActorType, limit int) ([]*models.Notification, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, user_type, type, title, body, data, is_read, sent_at, created_at
         FROM notifications WHERE user_id = ? AND user_type = ?
         ORDER BY created_at DESC, id DESC LIMIT ?`, userID, userType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var data string
		if err := rows.Scan(&n.ID, &n.UserID, &n.UserType, &n.Type, &n.Title, &n.Body, &data, &n.Read, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = []byte(data)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags a notification as read; it must belong to the recipient.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID int64, userType models.ActorType) error {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ? AND user_type = ?`, id, userID, userType)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tablebook/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.ScheduledNotification) error {
	query := `INSERT INTO scheduled_notifications (user_id, channel, kind, body, deliver_at, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		n.UserID,
		n.Channel,
		n.Kind,
		n.Body,
		n.DeliverAt,
		n.Status,
		n.RetryCount,
		n.LastError,
		now,
		n.NextRetryAt,
	)
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

// GetDueNotifications returns pending or retryable notifications whose
// deliver_at has passed, oldest first.
func (db *DB) GetDueNotifications(ctx context.Context, limit int) ([]models.ScheduledNotification, error) {
	query := `SELECT id, user_id, channel, kind, body, deliver_at, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM scheduled_notifications
              WHERE status IN ('pending', 'retry')
              AND deliver_at <= ?
              AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY deliver_at ASC LIMIT ?`
	now := time.Now()
	rows, err := db.QueryContext(ctx, query, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.ScheduledNotification
	for rows.Next() {
		var n models.ScheduledNotification
		var lastErr sql.NullString
		var processedAt, nextRetryAt sql.NullTime
		err := rows.Scan(
			&n.ID, &n.UserID, &n.Channel, &n.Kind, &n.Body, &n.DeliverAt,
			&n.Status, &n.RetryCount, &lastErr, &n.CreatedAt, &processedAt, &nextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.LastError = lastErr.String
		if processedAt.Valid {
			n.ProcessedAt = &processedAt.Time
		}
		if nextRetryAt.Valid {
			n.NextRetryAt = &nextRetryAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *DB) UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case "retry":
		query = `UPDATE scheduled_notifications SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case "delivered", "failed":
		query = `UPDATE scheduled_notifications SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE scheduled_notifications SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/domain/entity"
)

// NotificationRepository implements port.NotificationRepository on SQLite
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new in-app notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			user_id, request_id, type, title, message, read, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		notification.UserID,
		notification.RequestID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Read,
		notification.Status,
		notification.ErrorMessage,
	)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.String("user_id", notification.UserID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// ListByUser returns a user's notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, user_id, request_id, type, title, message, read, status, error_message,
			created_at, updated_at
		FROM notifications
		WHERE user_id = ?
	`
	args := []interface{}{userID}

	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var notification entity.Notification
		err := rows.Scan(
			&notification.ID,
			&notification.UserID,
			&notification.RequestID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.Read,
			&notification.Status,
			&notification.ErrorMessage,
			&notification.CreatedAt,
			&notification.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &notification)
	}

	return notifications, rows.Err()
}

// MarkRead marks a single notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	query := `UPDATE notifications SET read = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every notification of a user as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET read = 1, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND read = 0`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, userID); err != nil {
		r.logger.Error("Failed to mark notifications read", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// MarkSent records a successful email delivery
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `UPDATE notifications SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusSent, id); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed email delivery with its error
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	query := `UPDATE notifications SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusFailed, errorMsg, id); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)

package postgres

import (
	"context"

	"github.com/reddert/notification-system/internal/domain"
	"github.com/reddert/notification-system/internal/repository"
)

// CreateNotification inserts a notification row.
func (r *Repository) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Message,
		notification.Read,
		notification.CreatedAt,
	)
	return mapError(err)
}

// GetNotificationByID fetches a notification by identifier.
func (r *Repository) GetNotificationByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `SELECT id, user_id, message, read, created_at FROM notifications WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &n, nil
}

// ListNotificationsByUser returns a user's notifications, newest first.
func (r *Repository) ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	const query = `SELECT id, user_id, message, read, created_at FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// SetNotificationRead flips the read flag.
func (r *Repository) SetNotificationRead(ctx context.Context, id string, read bool) error {
	const query = `UPDATE notifications SET read = $2 WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, id, read)
	if err != nil {
		return mapError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteNotification removes a notification row.
func (r *Repository) DeleteNotification(ctx context.Context, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"notemesh/internal/domain"
)

// NotificationRepository implements store.NotificationRepository using
// PostgreSQL.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new PostgreSQL-backed notification
// repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a new notification and fills in its generated id.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, message, is_read, created_at)
		VALUES ($1, $2, FALSE, now())
		RETURNING id, created_at
	`

	err := r.db.pool.QueryRow(ctx, query, n.UserID, n.Message).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.IsRead = false
	return nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead sets a notification's read flag.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.db.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}

	return nil
}

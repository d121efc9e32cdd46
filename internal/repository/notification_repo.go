package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantops/plantops/internal/models"
)

// NotificationRepository stores per-user notification copies.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores one recipient's copy of a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.StoredNotification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, severity, reference_type, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Severity,
		nullableString(n.ReferenceType), nullableString(n.ReferenceID), formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListForUser retrieves a user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.StoredNotification, error) {
	query := `
		SELECT id, user_id, title, message, severity, reference_type, reference_id, read_at, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.StoredNotification
	for rows.Next() {
		var n models.StoredNotification
		var refType, refID, readAt sql.NullString
		var createdStr string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Severity, &refType, &refID, &readAt, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.ReferenceType = refType.String
		n.ReferenceID = refID.String
		n.ReadAt = timePtr(readAt)
		n.CreatedAt = parseTime(createdStr)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead stamps a notification as read by its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = ? WHERE id = ? AND user_id = ? AND read_at IS NULL",
		formatTime(at), id, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Entity: "unread notification", ID: id}
	}
	return nil
}

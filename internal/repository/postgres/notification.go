package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, message, link, read, email_id, proposal, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Message,
		notification.Link,
		notification.Read,
		notification.EmailID,
		notification.Proposal,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT * FROM notifications WHERE id = $1 AND user_id = $2`
	var notification model.Notification
	err := r.db.GetContext(ctx, &notification, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification not found")
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1 AND read = false
		ORDER BY created_at DESC
	`
	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	query := `UPDATE notifications SET read = true, updated_at = $1 WHERE id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET read = true, updated_at = $1 WHERE user_id = $2 AND read = false`
	_, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// ExistsByEmailID dedupes inbox scans: a message already turned into a
// notification is never proposed twice.
func (r *notificationRepository) ExistsByEmailID(ctx context.Context, userID uuid.UUID, emailID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM notifications WHERE user_id = $1 AND email_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, emailID); err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return exists, nil
}

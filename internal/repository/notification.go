package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat/internal/domain"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	UpdateStatus(ctx context.Context, notificationID uuid.UUID, status domain.NotificationStatus) error
	Delete(ctx context.Context, notificationID, userID uuid.UUID) error
}

type notificationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, log logger.Logger) NotificationRepository {
	return &notificationRepository{db: db, log: log}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, content, status, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		notification.ID, notification.UserID, notification.Type, notification.Content,
		notification.Status, notification.IsRead, notification.CreatedAt, notification.UpdatedAt,
	).Scan(&notification.CreatedAt, &notification.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create notification", "error", err, "user_id", notification.UserID)
		return err
	}

	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, type, content, status, is_read, created_at, updated_at
		FROM notifications
		WHERE user_id = $1 AND ($4 = false OR is_read = false)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset, unreadOnly)
	if err != nil {
		r.log.Error("Failed to list notifications", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Content, &n.Status, &n.IsRead,
			&n.CreatedAt, &n.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan notification", "error", err)
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count unread notifications", "error", err, "user_id", userID)
		return 0, err
	}

	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = true, updated_at = $3
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Exec(ctx, query, notificationID, userID, time.Now())
	if err != nil {
		r.log.Error("Failed to mark notification read", "error", err, "notification_id", notificationID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, notificationID uuid.UUID, status domain.NotificationStatus) error {
	query := `
		UPDATE notifications
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, notificationID, status, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		r.log.Error("Failed to update notification status", "error", err, "notification_id", notificationID)
		return err
	}

	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, notificationID, userID)
	if err != nil {
		r.log.Error("Failed to delete notification", "error", err, "notification_id", notificationID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type NotificationRepository struct {
	store
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{store{pool: pool}}
}

const notificationColumns = `id, user_id, type, subject, body, status, attempts, created_at, sent_at`

func (r *NotificationRepository) GetNotificationForUpdate(ctx context.Context, id string) (domain.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 FOR UPDATE`

	n, err := scanNotification(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Notification{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Notification{}, domain.ErrNotificationNotFound
		}
		return domain.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListDispatchable returns pending and previously failed notifications that
// have not yet exhausted their delivery attempts, oldest first. Rows are
// locked so concurrent dispatchers skip each other's batches.
func (r *NotificationRepository) ListDispatchable(ctx context.Context, maxAttempts, limit int) ([]domain.Notification, error) {
	const query = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE status IN ('pending', 'failed') AND attempts < $1
ORDER BY created_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`

	return r.listNotifications(ctx, query, maxAttempts, limit)
}

func (r *NotificationRepository) ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	const query = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC`

	return r.listNotifications(ctx, query, userID)
}

func (r *NotificationRepository) listNotifications(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate notifications: %w", rows.Err())
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	const stmt = `
UPDATE notifications
SET status = 'sent', attempts = attempts + 1, sent_at = $2
WHERE id = $1`

	return r.markNotification(ctx, stmt, id, at)
}

func (r *NotificationRepository) MarkNotificationFailed(ctx context.Context, id string) error {
	const stmt = `
UPDATE notifications
SET status = 'failed', attempts = attempts + 1
WHERE id = $1`

	return r.markNotification(ctx, stmt, id)
}

func (r *NotificationRepository) MarkNotificationRead(ctx context.Context, id string) error {
	const stmt = `UPDATE notifications SET status = 'read' WHERE id = $1`
	return r.markNotification(ctx, stmt, id)
}

func (r *NotificationRepository) markNotification(ctx context.Context, stmt, id string, args ...any) error {
	tag, err := r.exec(ctx, stmt, append([]any{id}, args...)...)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Subject, &n.Body, &n.Status, &n.Attempts, &n.CreatedAt, &n.SentAt,
	)
	return n, err
}

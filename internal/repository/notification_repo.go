package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type CreateNotificationInput struct {
	UserID  int64
	Kind    string
	Title   string
	Message string
	Meta    map[string]any
}

const notificationColumns = `id, user_id, kind, title, message, meta, read, created_at`

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row interface{ Scan(dest ...any) error }) (*models.Notification, error) {
	var notification models.Notification
	var rawMeta []byte
	err := row.Scan(
		&notification.ID,
		&notification.UserID,
		&notification.Kind,
		&notification.Title,
		&notification.Message,
		&rawMeta,
		&notification.Read,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &notification.Meta); err != nil {
			return nil, err
		}
	}
	return &notification, nil
}

func (r *NotificationRepository) Create(
	ctx context.Context,
	input CreateNotificationInput,
) (*models.Notification, error) {
	meta := input.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO notifications (user_id, kind, title, message, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, notificationColumns)
	return scanNotification(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.Kind,
		input.Title,
		input.Message,
		rawMeta,
	))
}

func (r *NotificationRepository) ListByUser(
	ctx context.Context,
	userID int64,
	limit int,
) ([]models.Notification, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, notificationColumns)

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *NotificationRepository) MarkRead(
	ctx context.Context,
	notificationID int64,
	userID int64,
) (*models.Notification, error) {
	query := fmt.Sprintf(`
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING %s
	`, notificationColumns)
	return scanNotification(r.db.QueryRow(ctx, query, notificationID, userID))
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

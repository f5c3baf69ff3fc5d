package postgres

import (
	"context"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type notificationRepo struct {
	q repository.Querier
}

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, order_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.OrderID, n.IsRead, n.CreatedAt)
	return mapErr(err)
}

func (r notificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, type, title, message, order_id, is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.OrderID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r notificationRepo) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectOne(tag)
}

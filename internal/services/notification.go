package services

import (
	"context"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const notificationPageSize = 50

type NotificationService struct {
	store repository.Store
}

func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.store.Notifications().ListByUser(ctx, userID, notificationPageSize)
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	if err := s.store.Notifications().MarkRead(ctx, id, userID); err != nil {
		return notFound(err, "Notification introuvable")
	}
	return nil
}

package services

import (
	"context"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

type notificationStore interface {
	Create(
		ctx context.Context,
		input repository.CreateNotificationInput,
	) (*models.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID int64, userID int64) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// NotificationService is the sink every workflow transition reports to, plus
// the listing surface users read their inbox through.
type NotificationService struct {
	notificationRepo notificationStore
	defaultLimit     int
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	defaultLimit int,
) *NotificationService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		defaultLimit:     defaultLimit,
	}
}

func (s *NotificationService) Notify(
	ctx context.Context,
	userID int64,
	kind string,
	title string,
	message string,
	meta map[string]any,
) error {
	_, err := s.notificationRepo.Create(ctx, repository.CreateNotificationInput{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Meta:    meta,
	})
	return err
}

func (s *NotificationService) ListMine(
	ctx context.Context,
	userID int64,
	limit int,
) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = s.defaultLimit
	}
	return s.notificationRepo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(
	ctx context.Context,
	userID int64,
	notificationID int64,
) (*models.Notification, error) {
	if notificationID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.notificationRepo.MarkRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

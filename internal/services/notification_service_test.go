package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

type stubNotificationStore struct {
	created []repository.CreateNotificationInput

	lastListLimit int
	readAll       int64
}

func (s *stubNotificationStore) Create(
	ctx context.Context,
	input repository.CreateNotificationInput,
) (*models.Notification, error) {
	s.created = append(s.created, input)
	return &models.Notification{
		ID:      int64(len(s.created)),
		UserID:  input.UserID,
		Kind:    input.Kind,
		Title:   input.Title,
		Message: input.Message,
		Meta:    input.Meta,
	}, nil
}

func (s *stubNotificationStore) ListByUser(
	ctx context.Context,
	userID int64,
	limit int,
) ([]models.Notification, error) {
	s.lastListLimit = limit
	return nil, nil
}

func (s *stubNotificationStore) MarkRead(
	ctx context.Context,
	notificationID int64,
	userID int64,
) (*models.Notification, error) {
	for _, input := range s.created {
		if input.UserID == userID {
			return &models.Notification{ID: notificationID, UserID: userID, Read: true}, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubNotificationStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.readAll, nil
}

func TestNotifyPersistsTheRow(t *testing.T) {
	store := &stubNotificationStore{}
	service := &NotificationService{notificationRepo: store, defaultLimit: 20}

	err := service.Notify(context.Background(), 1, "session", "Reschedule approved",
		"Your trainer approved the new session time.",
		map[string]any{"session_id": int64(7)})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(store.created))
	}
	if store.created[0].Kind != "session" || store.created[0].UserID != 1 {
		t.Errorf("unexpected stored notification %+v", store.created[0])
	}
}

func TestListMineNormalizesLimit(t *testing.T) {
	store := &stubNotificationStore{}
	service := &NotificationService{notificationRepo: store, defaultLimit: 20}

	cases := []struct {
		requested int
		want      int
	}{
		{0, 20},
		{-3, 20},
		{250, 20},
		{15, 15},
	}
	for _, tc := range cases {
		if _, err := service.ListMine(context.Background(), 1, tc.requested); err != nil {
			t.Fatalf("ListMine(%d): %v", tc.requested, err)
		}
		if store.lastListLimit != tc.want {
			t.Errorf("limit %d: expected %d passed to the store, got %d",
				tc.requested, tc.want, store.lastListLimit)
		}
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	store := &stubNotificationStore{}
	service := &NotificationService{notificationRepo: store, defaultLimit: 20}

	if err := service.Notify(context.Background(), 1, "session", "t", "m", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if _, err := service.MarkRead(context.Background(), 1, 1); err != nil {
		t.Errorf("owner should mark their notification read, got %v", err)
	}
	if _, err := service.MarkRead(context.Background(), 99, 1); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected pgx.ErrNoRows for another user's notification, got %v", err)
	}
	if _, err := service.MarkRead(context.Background(), 1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for id 0, got %v", err)
	}
}

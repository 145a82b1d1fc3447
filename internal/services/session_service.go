package services

import (
	"context"
	"time"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

// SessionService covers the read-side of sessions. Sessions are created by the
// scheduling collaborator; the only writes in this codebase go through the
// RequestService workflow.
type SessionService struct {
	sessionRepo *repository.SessionRepository
}

func NewSessionService(sessionRepo *repository.SessionRepository) *SessionService {
	return &SessionService{sessionRepo: sessionRepo}
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.Session, error) {
	return s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

// CheckConflict reports whether moving a session to the proposed window would
// overlap another non-cancelled session of the same trainer.
func (s *SessionService) CheckConflict(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	startTime time.Time,
	endTime time.Time,
) (bool, error) {
	if sessionID <= 0 || startTime.IsZero() || endTime.IsZero() || !endTime.After(startTime) {
		return false, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !canAccessSession(role, actorID, session) {
		return false, ErrForbidden
	}

	return s.sessionRepo.HasConflictExcludingSession(
		ctx,
		session.TrainerID,
		startTime,
		endTime,
		session.ID,
	)
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == "student" {
		return session.StudentID == actorID
	}
	if role == "trainer" {
		return session.TrainerID == actorID
	}
	return role == "admin"
}

package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

type sessionStore interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	SetPendingRequest(
		ctx context.Context,
		sessionID int64,
		requestType string,
		requestStatus string,
		reason string,
	) (*models.Session, error)
	ClearPendingRequest(ctx context.Context, sessionID int64) (*models.Session, error)
	UpdateTimes(
		ctx context.Context,
		sessionID int64,
		startTime time.Time,
		endTime time.Time,
	) (*models.Session, error)
	UpdateStatus(ctx context.Context, sessionID int64, status string) (*models.Session, error)
	HasConflictExcludingSession(
		ctx context.Context,
		trainerID int64,
		startTime time.Time,
		endTime time.Time,
		excludedSessionID int64,
	) (bool, error)
}

type changeRequestStore interface {
	Create(
		ctx context.Context,
		input repository.CreateChangeRequestInput,
	) (*models.ChangeRequest, error)
	GetPendingBySessionID(ctx context.Context, sessionID int64) (*models.ChangeRequest, error)
	ExpirePendingBySessionID(ctx context.Context, sessionID int64) (int64, error)
	MarkApprovedIfPending(ctx context.Context, requestID int64) (*models.ChangeRequest, error)
	MarkRejectedIfPending(
		ctx context.Context,
		requestID int64,
		rejectReason string,
	) (*models.ChangeRequest, error)
	ListPendingByTrainerID(ctx context.Context, trainerID int64) ([]models.ChangeRequest, error)
}

type notifier interface {
	Notify(
		ctx context.Context,
		userID int64,
		kind string,
		title string,
		message string,
		meta map[string]any,
	) error
}

// notifyAsync delivers a notification after the state change has been
// persisted. Delivery is best effort: failures are logged, never surfaced to
// the caller, and never roll the transition back.
func notifyAsync(n notifier, userID int64, kind, title, message string, meta map[string]any) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Notify(ctx, userID, kind, title, message, meta); err != nil {
			log.Printf("notification delivery failed for user %d: %v", userID, err)
		}
	}()
}

// RequestService runs the session change/absence workflow: a student submits a
// request against a scheduled session, the trainer approves or rejects it, and
// session times or status mutate accordingly. Each operation mutates a single
// session document plus its request ledger rows inside one transaction, so a
// pending ledger row and the session shadow state always move together; pending
// ledger rows are expired before a new one is created so at most one row per
// session is ever pending.
type RequestService struct {
	tx          txRunner
	sessionRepo sessionStore
	requestRepo changeRequestStore
	notifier    notifier
}

func NewRequestService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	requestRepo *repository.ChangeRequestRepository,
	notificationService *NotificationService,
) *RequestService {
	return &RequestService{
		tx:          pgxTxRunner{db: db},
		sessionRepo: sessionRepo,
		requestRepo: requestRepo,
		notifier:    notificationService,
	}
}

type SubmitChangeInput struct {
	SessionID    int64
	Reason       string
	NewStartTime time.Time
	NewEndTime   time.Time
}

func (s *RequestService) SubmitChange(
	ctx context.Context,
	requesterID int64,
	input SubmitChangeInput,
) (*models.ChangeRequest, error) {
	if input.SessionID <= 0 || strings.TrimSpace(input.Reason) == "" {
		return nil, ErrInvalidInput
	}
	if input.NewStartTime.IsZero() || input.NewEndTime.IsZero() {
		return nil, ErrInvalidInput
	}
	if !input.NewEndTime.After(input.NewStartTime) {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.StudentID != requesterID {
		return nil, ErrForbidden
	}
	if session.IsTerminal() {
		return nil, ErrConflict
	}

	var request *models.ChangeRequest
	err = s.tx.WithinTx(ctx, func(st txStores) error {
		// Resubmission wins: supersede any stale pending row before creating
		// the new one so two rows are never pending at once.
		if _, err := st.requests.ExpirePendingBySessionID(ctx, session.ID); err != nil {
			return err
		}

		created, err := st.requests.Create(ctx, repository.CreateChangeRequestInput{
			SessionID:    session.ID,
			StudentID:    session.StudentID,
			TrainerID:    session.TrainerID,
			Reason:       strings.TrimSpace(input.Reason),
			NewStartTime: input.NewStartTime,
			NewEndTime:   input.NewEndTime,
		})
		if err != nil {
			return err
		}

		if _, err := st.sessions.SetPendingRequest(
			ctx,
			session.ID,
			"change",
			"change_request_pending",
			created.Reason,
		); err != nil {
			return err
		}

		request = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAsync(s.notifier, session.TrainerID, "session", "New reschedule request",
		"Your student requested to reschedule a session.",
		map[string]any{
			"session_id":     session.ID,
			"request_id":     request.ID,
			"request_type":   "change",
			"actions":        []string{"approve", "reject"},
			"old_start_time": session.StartTime,
			"old_end_time":   session.EndTime,
			"new_start_time": request.NewStartTime,
			"new_end_time":   request.NewEndTime,
			"reason":         request.Reason,
		})

	return request, nil
}

type SubmitAbsentInput struct {
	SessionID int64
	Reason    string
}

func (s *RequestService) SubmitAbsent(
	ctx context.Context,
	requesterID int64,
	input SubmitAbsentInput,
) (*models.Session, error) {
	if input.SessionID <= 0 || strings.TrimSpace(input.Reason) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.StudentID != requesterID {
		return nil, ErrForbidden
	}
	if session.IsTerminal() {
		return nil, ErrConflict
	}

	var updated *models.Session
	err = s.tx.WithinTx(ctx, func(st txStores) error {
		// Absence requests carry no ledger row, but a stale pending change row
		// would otherwise survive the takeover of the shadow-state slot.
		if _, err := st.requests.ExpirePendingBySessionID(ctx, session.ID); err != nil {
			return err
		}

		updated, err = st.sessions.SetPendingRequest(
			ctx,
			session.ID,
			"absent",
			"absent_request_pending",
			strings.TrimSpace(input.Reason),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	notifyAsync(s.notifier, session.TrainerID, "session", "New absence request",
		"Your student asked to skip a session.",
		map[string]any{
			"session_id":     session.ID,
			"request_type":   "absent",
			"actions":        []string{"approve", "reject"},
			"old_start_time": session.StartTime,
			"old_end_time":   session.EndTime,
			"reason":         strings.TrimSpace(input.Reason),
		})

	return updated, nil
}

func (s *RequestService) Approve(
	ctx context.Context,
	approverID int64,
	sessionID int64,
) (*models.Session, error) {
	if sessionID <= 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TrainerID != approverID {
		return nil, ErrForbidden
	}
	if !session.HasOpenRequest() {
		return nil, ErrConflict
	}

	oldStart, oldEnd := session.StartTime, session.EndTime
	meta := map[string]any{
		"session_id":     session.ID,
		"request_type":   *session.RequestType,
		"old_start_time": oldStart,
		"old_end_time":   oldEnd,
	}
	title := ""
	message := ""

	var updated *models.Session
	err = s.tx.WithinTx(ctx, func(st txStores) error {
		switch *session.RequestType {
		case "change":
			request, err := st.requests.GetPendingBySessionID(ctx, session.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					// Superseded or already resolved; recoverable, not a crash.
					return ErrConflict
				}
				return err
			}
			// The proposed window may have been booked over while the request
			// sat pending.
			overlap, err := st.sessions.HasConflictExcludingSession(
				ctx,
				session.TrainerID,
				request.NewStartTime,
				request.NewEndTime,
				session.ID,
			)
			if err != nil {
				return err
			}
			if overlap {
				return ErrConflict
			}
			if _, err := st.requests.MarkApprovedIfPending(ctx, request.ID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrConflict
				}
				return err
			}
			if _, err := st.sessions.UpdateTimes(
				ctx,
				session.ID,
				request.NewStartTime,
				request.NewEndTime,
			); err != nil {
				return err
			}
			meta["new_start_time"] = request.NewStartTime
			meta["new_end_time"] = request.NewEndTime
			title = "Reschedule approved"
			message = "Your trainer approved the new session time."
		case "absent":
			if _, err := st.sessions.UpdateStatus(ctx, session.ID, "missed"); err != nil {
				return err
			}
			if session.RequestReason != nil {
				meta["reason"] = *session.RequestReason
			}
			title = "Absence approved"
			message = "Your trainer approved your absence for this session."
		default:
			return ErrInvalidInput
		}

		// Single epilogue for both branches: free the shadow-state slot so the
		// student can submit again.
		updated, err = st.sessions.ClearPendingRequest(ctx, session.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	notifyAsync(s.notifier, session.StudentID, "session", title, message, meta)

	return updated, nil
}

func (s *RequestService) Reject(
	ctx context.Context,
	approverID int64,
	sessionID int64,
	reason string,
) (*models.Session, error) {
	reason = strings.TrimSpace(reason)
	if sessionID <= 0 || reason == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TrainerID != approverID {
		return nil, ErrForbidden
	}
	// A session whose shadow state was already cleared has nothing left to
	// reject; the request was resolved or superseded.
	if !session.HasOpenRequest() {
		return nil, ErrConflict
	}

	var updated *models.Session
	err = s.tx.WithinTx(ctx, func(st txStores) error {
		switch *session.RequestType {
		case "change":
			request, err := st.requests.GetPendingBySessionID(ctx, session.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrConflict
				}
				return err
			}
			if _, err := st.requests.MarkRejectedIfPending(ctx, request.ID, reason); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrConflict
				}
				return err
			}
		case "absent":
			// No ledger row to resolve.
		default:
			return ErrInvalidInput
		}

		if _, err := st.sessions.UpdateStatus(ctx, session.ID, "scheduled"); err != nil {
			return err
		}
		updated, err = st.sessions.ClearPendingRequest(ctx, session.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	notifyAsync(s.notifier, session.StudentID, "session", "Request rejected",
		"Your trainer rejected your request for this session.",
		map[string]any{
			"session_id":     session.ID,
			"request_type":   *session.RequestType,
			"reject_reason":  reason,
			"old_start_time": session.StartTime,
			"old_end_time":   session.EndTime,
		})

	return updated, nil
}

// ListPendingRequests is the trainer's inbox of unresolved reschedule
// requests.
func (s *RequestService) ListPendingRequests(
	ctx context.Context,
	trainerID int64,
) ([]models.ChangeRequest, error) {
	return s.requestRepo.ListPendingByTrainerID(ctx, trainerID)
}

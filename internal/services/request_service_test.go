package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

type stubSessionStore struct {
	session *models.Session

	calls []string

	setType       string
	setStatus     string
	setReason     string
	setPendingErr error

	updatedStart  time.Time
	updatedEnd    time.Time
	updatedStatus string

	conflict bool
}

func (s *stubSessionStore) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	if s.session == nil || s.session.ID != sessionID {
		return nil, pgx.ErrNoRows
	}
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionStore) SetPendingRequest(
	ctx context.Context,
	sessionID int64,
	requestType string,
	requestStatus string,
	reason string,
) (*models.Session, error) {
	s.calls = append(s.calls, "set_pending")
	if s.setPendingErr != nil {
		return nil, s.setPendingErr
	}
	s.setType = requestType
	s.setStatus = requestStatus
	s.setReason = reason
	s.session.RequestType = &requestType
	s.session.RequestStatus = &requestStatus
	s.session.RequestReason = &reason
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionStore) ClearPendingRequest(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	s.calls = append(s.calls, "clear_pending")
	s.session.RequestType = nil
	s.session.RequestStatus = nil
	s.session.RequestReason = nil
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionStore) UpdateTimes(
	ctx context.Context,
	sessionID int64,
	startTime time.Time,
	endTime time.Time,
) (*models.Session, error) {
	s.calls = append(s.calls, "update_times")
	s.updatedStart = startTime
	s.updatedEnd = endTime
	s.session.StartTime = startTime
	s.session.EndTime = endTime
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionStore) UpdateStatus(
	ctx context.Context,
	sessionID int64,
	status string,
) (*models.Session, error) {
	s.calls = append(s.calls, "update_status")
	s.updatedStatus = status
	s.session.Status = status
	copied := *s.session
	return &copied, nil
}

func (s *stubSessionStore) HasConflictExcludingSession(
	ctx context.Context,
	trainerID int64,
	startTime time.Time,
	endTime time.Time,
	excludedSessionID int64,
) (bool, error) {
	s.calls = append(s.calls, "conflict_check")
	return s.conflict, nil
}

type stubRequestStore struct {
	pending *models.ChangeRequest

	calls []string

	created      *models.ChangeRequest
	rejectReason string

	pendingLookupErr error
	markErr          error
}

func (s *stubRequestStore) Create(
	ctx context.Context,
	input repository.CreateChangeRequestInput,
) (*models.ChangeRequest, error) {
	s.calls = append(s.calls, "create")
	request := &models.ChangeRequest{
		ID:           101,
		SessionID:    input.SessionID,
		StudentID:    input.StudentID,
		TrainerID:    input.TrainerID,
		Reason:       input.Reason,
		NewStartTime: input.NewStartTime,
		NewEndTime:   input.NewEndTime,
		Status:       "pending",
	}
	s.created = request
	s.pending = request
	return request, nil
}

func (s *stubRequestStore) GetPendingBySessionID(
	ctx context.Context,
	sessionID int64,
) (*models.ChangeRequest, error) {
	s.calls = append(s.calls, "get_pending")
	if s.pendingLookupErr != nil {
		return nil, s.pendingLookupErr
	}
	if s.pending == nil || s.pending.SessionID != sessionID {
		return nil, pgx.ErrNoRows
	}
	return s.pending, nil
}

func (s *stubRequestStore) ExpirePendingBySessionID(
	ctx context.Context,
	sessionID int64,
) (int64, error) {
	s.calls = append(s.calls, "expire")
	if s.pending != nil && s.pending.SessionID == sessionID && s.pending.Status == "pending" {
		s.pending.Status = "expired"
		return 1, nil
	}
	return 0, nil
}

func (s *stubRequestStore) MarkApprovedIfPending(
	ctx context.Context,
	requestID int64,
) (*models.ChangeRequest, error) {
	s.calls = append(s.calls, "mark_approved")
	if s.markErr != nil {
		return nil, s.markErr
	}
	s.pending.Status = "approved"
	return s.pending, nil
}

func (s *stubRequestStore) MarkRejectedIfPending(
	ctx context.Context,
	requestID int64,
	rejectReason string,
) (*models.ChangeRequest, error) {
	s.calls = append(s.calls, "mark_rejected")
	if s.markErr != nil {
		return nil, s.markErr
	}
	s.pending.Status = "rejected"
	s.rejectReason = rejectReason
	return s.pending, nil
}

func (s *stubRequestStore) ListPendingByTrainerID(
	ctx context.Context,
	trainerID int64,
) ([]models.ChangeRequest, error) {
	if s.pending != nil && s.pending.TrainerID == trainerID && s.pending.Status == "pending" {
		return []models.ChangeRequest{*s.pending}, nil
	}
	return nil, nil
}

type notificationRecord struct {
	userID  int64
	kind    string
	title   string
	message string
	meta    map[string]any
}

type stubNotifier struct {
	delivered chan notificationRecord
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{delivered: make(chan notificationRecord, 4)}
}

func (s *stubNotifier) Notify(
	ctx context.Context,
	userID int64,
	kind string,
	title string,
	message string,
	meta map[string]any,
) error {
	s.delivered <- notificationRecord{
		userID:  userID,
		kind:    kind,
		title:   title,
		message: message,
		meta:    meta,
	}
	return nil
}

func (s *stubNotifier) waitForDelivery(t *testing.T) notificationRecord {
	t.Helper()
	select {
	case record := <-s.delivered:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification, none delivered")
		return notificationRecord{}
	}
}

func scheduledSession() *models.Session {
	return &models.Session{
		ID:        7,
		TrainerID: 2,
		StudentID: 1,
		StartTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		Status:    "scheduled",
	}
}

func sessionWithOpenRequest(requestType, requestStatus, reason string) *models.Session {
	session := scheduledSession()
	session.RequestType = &requestType
	session.RequestStatus = &requestStatus
	session.RequestReason = &reason
	return session
}

// stubWorkflowTx hands the stub stores to the closure and undoes their state
// when it fails, mirroring a rolled-back transaction.
type stubWorkflowTx struct {
	sessions *stubSessionStore
	requests *stubRequestStore
}

func (r stubWorkflowTx) WithinTx(ctx context.Context, fn func(txStores) error) error {
	var sessionSnap *models.Session
	if r.sessions.session != nil {
		copied := *r.sessions.session
		sessionSnap = &copied
	}
	var pendingSnap *models.ChangeRequest
	if r.requests.pending != nil {
		copied := *r.requests.pending
		pendingSnap = &copied
	}

	err := fn(txStores{sessions: r.sessions, requests: r.requests})
	if err != nil {
		r.sessions.session = sessionSnap
		r.requests.pending = pendingSnap
		return err
	}
	return nil
}

func newTestRequestService(
	sessions *stubSessionStore,
	requests *stubRequestStore,
	n notifier,
) *RequestService {
	return &RequestService{
		tx:          stubWorkflowTx{sessions: sessions, requests: requests},
		sessionRepo: sessions,
		requestRepo: requests,
		notifier:    n,
	}
}

func TestSubmitChangeCreatesPendingRequest(t *testing.T) {
	sessions := &stubSessionStore{session: scheduledSession()}
	requests := &stubRequestStore{}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	newStart := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(time.Hour)

	request, err := service.SubmitChange(context.Background(), 1, SubmitChangeInput{
		SessionID:    7,
		Reason:       "work trip",
		NewStartTime: newStart,
		NewEndTime:   newEnd,
	})
	if err != nil {
		t.Fatalf("SubmitChange: %v", err)
	}

	if request.Status != "pending" {
		t.Errorf("expected request status pending, got %q", request.Status)
	}
	if !request.NewStartTime.Equal(newStart) || !request.NewEndTime.Equal(newEnd) {
		t.Errorf("unexpected proposed times: %v / %v", request.NewStartTime, request.NewEndTime)
	}
	if sessions.setType != "change" || sessions.setStatus != "change_request_pending" {
		t.Errorf("unexpected shadow state %q/%q", sessions.setType, sessions.setStatus)
	}
	if sessions.session.Status != "scheduled" {
		t.Errorf("submitting must not change session status, got %q", sessions.session.Status)
	}

	delivered := notifications.waitForDelivery(t)
	if delivered.userID != 2 {
		t.Errorf("expected trainer 2 to be notified, got user %d", delivered.userID)
	}
	if delivered.meta["request_type"] != "change" {
		t.Errorf("unexpected notification meta %v", delivered.meta)
	}
}

func TestSubmitChangeSupersedesStalePending(t *testing.T) {
	sessions := &stubSessionStore{
		session: sessionWithOpenRequest("change", "change_request_pending", "old reason"),
	}
	requests := &stubRequestStore{
		pending: &models.ChangeRequest{ID: 55, SessionID: 7, TrainerID: 2, Status: "pending"},
	}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	newStart := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	if _, err := service.SubmitChange(context.Background(), 1, SubmitChangeInput{
		SessionID:    7,
		Reason:       "changed my mind",
		NewStartTime: newStart,
		NewEndTime:   newStart.Add(time.Hour),
	}); err != nil {
		t.Fatalf("SubmitChange: %v", err)
	}

	if len(requests.calls) < 2 || requests.calls[0] != "expire" || requests.calls[1] != "create" {
		t.Fatalf("expected expire before create, got %v", requests.calls)
	}
	if requests.created.ID == 55 {
		t.Fatal("expected a fresh ledger row, old one was reused")
	}
	notifications.waitForDelivery(t)
}

func TestSubmitChangeRollsBackLedgerOnShadowStateFailure(t *testing.T) {
	sessions := &stubSessionStore{
		session:       scheduledSession(),
		setPendingErr: errors.New("update failed"),
	}
	requests := &stubRequestStore{}
	service := newTestRequestService(sessions, requests, nil)

	newStart := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	_, err := service.SubmitChange(context.Background(), 1, SubmitChangeInput{
		SessionID:    7,
		Reason:       "work trip",
		NewStartTime: newStart,
		NewEndTime:   newStart.Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected SubmitChange to fail")
	}

	// The ledger row written before the failure must not survive, or Approve
	// would see a pending request the session knows nothing about.
	if requests.pending != nil {
		t.Fatalf("expected no pending ledger row after rollback, got %+v", requests.pending)
	}
	if sessions.session.HasOpenRequest() {
		t.Error("expected session shadow state untouched after rollback")
	}
}

func TestSubmitChangeRejectsInvalidInput(t *testing.T) {
	sessions := &stubSessionStore{session: scheduledSession()}
	service := newTestRequestService(sessions, &stubRequestStore{}, nil)
	start := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input SubmitChangeInput
	}{
		{"empty reason", SubmitChangeInput{SessionID: 7, Reason: "  ", NewStartTime: start, NewEndTime: start.Add(time.Hour)}},
		{"zero times", SubmitChangeInput{SessionID: 7, Reason: "x"}},
		{"end before start", SubmitChangeInput{SessionID: 7, Reason: "x", NewStartTime: start, NewEndTime: start.Add(-time.Hour)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.SubmitChange(context.Background(), 1, tc.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSubmitChangeGuards(t *testing.T) {
	start := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	input := SubmitChangeInput{
		SessionID:    7,
		Reason:       "conflict at work",
		NewStartTime: start,
		NewEndTime:   start.Add(time.Hour),
	}

	t.Run("other student", func(t *testing.T) {
		sessions := &stubSessionStore{session: scheduledSession()}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.SubmitChange(context.Background(), 99, input); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("completed session", func(t *testing.T) {
		session := scheduledSession()
		session.Status = "completed"
		sessions := &stubSessionStore{session: session}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.SubmitChange(context.Background(), 1, input); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		sessions := &stubSessionStore{session: scheduledSession()}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		unknown := input
		unknown.SessionID = 404
		if _, err := service.SubmitChange(context.Background(), 1, unknown); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected pgx.ErrNoRows, got %v", err)
		}
	})
}

func TestSubmitAbsentSetsShadowState(t *testing.T) {
	sessions := &stubSessionStore{session: scheduledSession()}
	requests := &stubRequestStore{}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	updated, err := service.SubmitAbsent(context.Background(), 1, SubmitAbsentInput{
		SessionID: 7,
		Reason:    "sick",
	})
	if err != nil {
		t.Fatalf("SubmitAbsent: %v", err)
	}

	if updated.RequestType == nil || *updated.RequestType != "absent" {
		t.Errorf("expected absent shadow state, got %v", updated.RequestType)
	}
	if sessions.setStatus != "absent_request_pending" {
		t.Errorf("unexpected request status %q", sessions.setStatus)
	}
	for _, call := range requests.calls {
		if call == "create" {
			t.Fatal("absence requests must not create ledger rows")
		}
	}
	if updated.Status != "scheduled" {
		t.Errorf("submitting absence must not change status, got %q", updated.Status)
	}

	delivered := notifications.waitForDelivery(t)
	if delivered.userID != 2 {
		t.Errorf("expected trainer 2 to be notified, got user %d", delivered.userID)
	}
}

func TestApproveChangeAppliesNewTimes(t *testing.T) {
	sessions := &stubSessionStore{
		session: sessionWithOpenRequest("change", "change_request_pending", "work trip"),
	}
	newStart := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	requests := &stubRequestStore{
		pending: &models.ChangeRequest{
			ID:           42,
			SessionID:    7,
			TrainerID:    2,
			Status:       "pending",
			NewStartTime: newStart,
			NewEndTime:   newStart.Add(time.Hour),
		},
	}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	updated, err := service.Approve(context.Background(), 2, 7)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if !sessions.updatedStart.Equal(newStart) {
		t.Errorf("expected session start %v, got %v", newStart, sessions.updatedStart)
	}
	if requests.pending.Status != "approved" {
		t.Errorf("expected ledger row approved, got %q", requests.pending.Status)
	}
	if updated.HasOpenRequest() {
		t.Error("expected shadow state cleared after approval")
	}
	if updated.Status != "scheduled" {
		t.Errorf("approved reschedule must stay scheduled, got %q", updated.Status)
	}

	delivered := notifications.waitForDelivery(t)
	if delivered.userID != 1 {
		t.Errorf("expected student 1 to be notified, got user %d", delivered.userID)
	}
	if _, ok := delivered.meta["new_start_time"]; !ok {
		t.Errorf("expected new times in meta, got %v", delivered.meta)
	}
}

func TestApproveChangeBlockedByOverlappingSession(t *testing.T) {
	sessions := &stubSessionStore{
		session:  sessionWithOpenRequest("change", "change_request_pending", "work trip"),
		conflict: true,
	}
	newStart := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	requests := &stubRequestStore{
		pending: &models.ChangeRequest{
			ID:           42,
			SessionID:    7,
			TrainerID:    2,
			Status:       "pending",
			NewStartTime: newStart,
			NewEndTime:   newStart.Add(time.Hour),
		},
	}
	service := newTestRequestService(sessions, requests, nil)

	if _, err := service.Approve(context.Background(), 2, 7); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when the proposed window is taken, got %v", err)
	}

	if requests.pending.Status != "pending" {
		t.Errorf("blocked approval must leave the ledger row pending, got %q", requests.pending.Status)
	}
	for _, call := range sessions.calls {
		if call == "update_times" {
			t.Fatal("blocked approval must not move the session")
		}
	}
	if !sessions.session.HasOpenRequest() {
		t.Error("expected shadow state kept so the trainer can reject instead")
	}
}

func TestApproveAbsentMarksMissed(t *testing.T) {
	sessions := &stubSessionStore{
		session: sessionWithOpenRequest("absent", "absent_request_pending", "sick"),
	}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, &stubRequestStore{}, notifications)

	updated, err := service.Approve(context.Background(), 2, 7)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if updated.Status != "missed" {
		t.Errorf("expected status missed, got %q", updated.Status)
	}
	if updated.HasOpenRequest() {
		t.Error("expected shadow state cleared after approval")
	}

	delivered := notifications.waitForDelivery(t)
	if delivered.meta["reason"] != "sick" {
		t.Errorf("expected absence reason in meta, got %v", delivered.meta)
	}
}

func TestApproveGuards(t *testing.T) {
	t.Run("wrong trainer", func(t *testing.T) {
		sessions := &stubSessionStore{
			session: sessionWithOpenRequest("change", "change_request_pending", "x"),
		}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.Approve(context.Background(), 99, 7); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("no open request", func(t *testing.T) {
		sessions := &stubSessionStore{session: scheduledSession()}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.Approve(context.Background(), 2, 7); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("ledger row already resolved", func(t *testing.T) {
		sessions := &stubSessionStore{
			session: sessionWithOpenRequest("change", "change_request_pending", "x"),
		}
		requests := &stubRequestStore{pendingLookupErr: pgx.ErrNoRows}
		service := newTestRequestService(sessions, requests, nil)
		if _, err := service.Approve(context.Background(), 2, 7); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("lost the mark race", func(t *testing.T) {
		sessions := &stubSessionStore{
			session: sessionWithOpenRequest("change", "change_request_pending", "x"),
		}
		requests := &stubRequestStore{
			pending: &models.ChangeRequest{ID: 42, SessionID: 7, Status: "pending"},
			markErr: pgx.ErrNoRows,
		}
		service := newTestRequestService(sessions, requests, nil)
		if _, err := service.Approve(context.Background(), 2, 7); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestRejectRestoresScheduledSession(t *testing.T) {
	sessions := &stubSessionStore{
		session: sessionWithOpenRequest("change", "change_request_pending", "work trip"),
	}
	requests := &stubRequestStore{
		pending: &models.ChangeRequest{ID: 42, SessionID: 7, Status: "pending"},
	}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	updated, err := service.Reject(context.Background(), 2, 7, "too late to move it")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if requests.pending.Status != "rejected" {
		t.Errorf("expected ledger row rejected, got %q", requests.pending.Status)
	}
	if requests.rejectReason != "too late to move it" {
		t.Errorf("expected reject reason recorded, got %q", requests.rejectReason)
	}
	if sessions.updatedStatus != "scheduled" {
		t.Errorf("expected session restored to scheduled, got %q", sessions.updatedStatus)
	}
	if updated.HasOpenRequest() {
		t.Error("expected shadow state cleared after rejection")
	}

	delivered := notifications.waitForDelivery(t)
	if delivered.userID != 1 {
		t.Errorf("expected student 1 to be notified, got user %d", delivered.userID)
	}
	if delivered.meta["reject_reason"] != "too late to move it" {
		t.Errorf("expected reject reason in meta, got %v", delivered.meta)
	}
}

func TestRejectAbsentClearsShadowStateOnly(t *testing.T) {
	sessions := &stubSessionStore{
		session: sessionWithOpenRequest("absent", "absent_request_pending", "sick"),
	}
	requests := &stubRequestStore{}
	notifications := newStubNotifier()
	service := newTestRequestService(sessions, requests, notifications)

	updated, err := service.Reject(context.Background(), 2, 7, "doctor's note required")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if updated.Status != "scheduled" {
		t.Errorf("expected status scheduled, got %q", updated.Status)
	}
	for _, call := range requests.calls {
		if call == "mark_rejected" {
			t.Fatal("absence rejection must not touch the ledger")
		}
	}
	notifications.waitForDelivery(t)
}

func TestRejectGuards(t *testing.T) {
	t.Run("missing reason", func(t *testing.T) {
		sessions := &stubSessionStore{
			session: sessionWithOpenRequest("change", "change_request_pending", "x"),
		}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.Reject(context.Background(), 2, 7, "  "); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("no open request", func(t *testing.T) {
		sessions := &stubSessionStore{session: scheduledSession()}
		service := newTestRequestService(sessions, &stubRequestStore{}, nil)
		if _, err := service.Reject(context.Background(), 2, 7, "nope"); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestListPendingRequests(t *testing.T) {
	requests := &stubRequestStore{
		pending: &models.ChangeRequest{ID: 42, SessionID: 7, TrainerID: 2, Status: "pending"},
	}
	service := newTestRequestService(&stubSessionStore{}, requests, nil)

	list, err := service.ListPendingRequests(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(list) != 1 || list[0].ID != 42 {
		t.Fatalf("unexpected pending list %v", list)
	}
}

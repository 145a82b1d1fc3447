package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

type stubRequestWorkflow struct {
	submitChangeErr error
	approveErr      error
	rejectErr       error

	rejectedReason string
}

func (s *stubRequestWorkflow) SubmitChange(
	ctx context.Context,
	requesterID int64,
	input services.SubmitChangeInput,
) (*models.ChangeRequest, error) {
	if s.submitChangeErr != nil {
		return nil, s.submitChangeErr
	}
	return &models.ChangeRequest{
		ID:           101,
		SessionID:    input.SessionID,
		StudentID:    requesterID,
		Reason:       input.Reason,
		NewStartTime: input.NewStartTime,
		NewEndTime:   input.NewEndTime,
		Status:       "pending",
	}, nil
}

func (s *stubRequestWorkflow) SubmitAbsent(
	ctx context.Context,
	requesterID int64,
	input services.SubmitAbsentInput,
) (*models.Session, error) {
	requestType := "absent"
	return &models.Session{
		ID:          input.SessionID,
		StudentID:   requesterID,
		Status:      "scheduled",
		RequestType: &requestType,
	}, nil
}

func (s *stubRequestWorkflow) Approve(
	ctx context.Context,
	approverID int64,
	sessionID int64,
) (*models.Session, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &models.Session{ID: sessionID, TrainerID: approverID, Status: "scheduled"}, nil
}

func (s *stubRequestWorkflow) Reject(
	ctx context.Context,
	approverID int64,
	sessionID int64,
	reason string,
) (*models.Session, error) {
	if s.rejectErr != nil {
		return nil, s.rejectErr
	}
	s.rejectedReason = reason
	return &models.Session{ID: sessionID, TrainerID: approverID, Status: "scheduled"}, nil
}

func (s *stubRequestWorkflow) ListPendingRequests(
	ctx context.Context,
	trainerID int64,
) ([]models.ChangeRequest, error) {
	return []models.ChangeRequest{{ID: 101, TrainerID: trainerID, Status: "pending"}}, nil
}

// asUser injects the locals the auth middleware normally sets.
func asUser(userID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	}
}

func newRequestTestApp(workflow *stubRequestWorkflow, userID, role string) *fiber.App {
	handler := &RequestHandler{service: workflow}
	app := fiber.New()
	app.Use(asUser(userID, role))
	app.Post("/requests/change", handler.SubmitChange)
	app.Post("/requests/absent", handler.SubmitAbsent)
	app.Post("/requests/approve", handler.Approve)
	app.Post("/requests/reject", handler.Reject)
	app.Get("/requests/pending", handler.ListPending)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s: %v", path, err)
	}
	return resp
}

func TestSubmitChangeEndpoint(t *testing.T) {
	app := newRequestTestApp(&stubRequestWorkflow{}, "1", "student")

	resp := postJSON(t, app, "/requests/change", `{
		"session_id": 7,
		"reason": "work trip",
		"new_start_time": "2026-03-12T09:00:00Z",
		"new_end_time": "2026-03-12T10:00:00Z"
	}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSubmitChangeEndpointRejectsBadTimestamp(t *testing.T) {
	app := newRequestTestApp(&stubRequestWorkflow{}, "1", "student")

	resp := postJSON(t, app, "/requests/change", `{
		"session_id": 7,
		"reason": "work trip",
		"new_start_time": "tomorrow",
		"new_end_time": "2026-03-12T10:00:00Z"
	}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitChangeEndpointRequiresStudentRole(t *testing.T) {
	app := newRequestTestApp(&stubRequestWorkflow{}, "2", "trainer")

	resp := postJSON(t, app, "/requests/change", `{"session_id": 7, "reason": "x"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestApproveEndpointMapsConflict(t *testing.T) {
	workflow := &stubRequestWorkflow{approveErr: services.ErrConflict}
	app := newRequestTestApp(workflow, "2", "trainer")

	resp := postJSON(t, app, "/requests/approve", `{"session_id": 7}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 when no request is open, got %d", resp.StatusCode)
	}
}

func TestRejectEndpointRequiresReason(t *testing.T) {
	app := newRequestTestApp(&stubRequestWorkflow{}, "2", "trainer")

	resp := postJSON(t, app, "/requests/reject", `{"session_id": 7, "reason": "  "}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a reason, got %d", resp.StatusCode)
	}
}

func TestRejectEndpointIgnoresLegacyRequestType(t *testing.T) {
	workflow := &stubRequestWorkflow{}
	app := newRequestTestApp(workflow, "2", "trainer")

	resp := postJSON(t, app, "/requests/reject",
		`{"session_id": 7, "reason": "too late", "request_type": "absent"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if workflow.rejectedReason != "too late" {
		t.Errorf("expected reason forwarded, got %q", workflow.rejectedReason)
	}
}

func TestListPendingEndpointRequiresTrainer(t *testing.T) {
	app := newRequestTestApp(&stubRequestWorkflow{}, "1", "student")

	req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

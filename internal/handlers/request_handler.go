package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

type requestWorkflowService interface {
	SubmitChange(
		ctx context.Context,
		requesterID int64,
		input services.SubmitChangeInput,
	) (*models.ChangeRequest, error)
	SubmitAbsent(
		ctx context.Context,
		requesterID int64,
		input services.SubmitAbsentInput,
	) (*models.Session, error)
	Approve(ctx context.Context, approverID int64, sessionID int64) (*models.Session, error)
	Reject(
		ctx context.Context,
		approverID int64,
		sessionID int64,
		reason string,
	) (*models.Session, error)
	ListPendingRequests(ctx context.Context, trainerID int64) ([]models.ChangeRequest, error)
}

type RequestHandler struct {
	service requestWorkflowService
}

func NewRequestHandler(service *services.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

type submitChangeRequest struct {
	SessionID    int64  `json:"session_id"`
	Reason       string `json:"reason"`
	NewStartTime string `json:"new_start_time"`
	NewEndTime   string `json:"new_end_time"`
}

type submitAbsentRequest struct {
	SessionID int64  `json:"session_id"`
	Reason    string `json:"reason"`
}

type decideRequest struct {
	SessionID int64  `json:"session_id"`
	Reason    string `json:"reason"`
	// Older clients send the request kind on reject; the session's own state
	// decides, so the field is accepted and ignored.
	RequestType string `json:"request_type"`
}

func (h *RequestHandler) SubmitChange(c *fiber.Ctx) error {
	if actorRole(c) != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	newStartTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.NewStartTime))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "new_start_time must be a valid RFC3339 timestamp"})
	}
	newEndTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.NewEndTime))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "new_end_time must be a valid RFC3339 timestamp"})
	}

	request, err := h.service.SubmitChange(c.Context(), studentID, services.SubmitChangeInput{
		SessionID:    req.SessionID,
		Reason:       req.Reason,
		NewStartTime: newStartTime,
		NewEndTime:   newEndTime,
	})
	if err != nil {
		return mapRequestError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}

func (h *RequestHandler) SubmitAbsent(c *fiber.Ctx) error {
	if actorRole(c) != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitAbsentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.SubmitAbsent(c.Context(), studentID, services.SubmitAbsentInput{
		SessionID: req.SessionID,
		Reason:    req.Reason,
	})
	if err != nil {
		return mapRequestError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *RequestHandler) Approve(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.Approve(c.Context(), trainerID, req.SessionID)
	if err != nil {
		return mapRequestError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *RequestHandler) Reject(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req decideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason is required"})
	}

	session, err := h.service.Reject(c.Context(), trainerID, req.SessionID, req.Reason)
	if err != nil {
		return mapRequestError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *RequestHandler) ListPending(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	requests, err := h.service.ListPendingRequests(c.Context(), trainerID)
	if err != nil {
		return mapRequestError(c, err)
	}

	return c.JSON(fiber.Map{"requests": requests})
}

func mapRequestError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "No open request for this session"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process session request"})
	}
}

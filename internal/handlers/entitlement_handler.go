package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

type entitlementApplicationService interface {
	CreateDirect(
		ctx context.Context,
		trainerID int64,
		input services.CreateDirectInput,
	) (*models.Entitlement, error)
	Adjust(
		ctx context.Context,
		trainerID int64,
		entitlementID int64,
		input services.AdjustEntitlementInput,
	) (*models.Entitlement, error)
	GetByID(
		ctx context.Context,
		actorID int64,
		role string,
		entitlementID int64,
	) (*models.Entitlement, error)
	ListForStudent(ctx context.Context, studentID int64) ([]models.Entitlement, error)
	ListMyStudents(ctx context.Context, trainerID int64) ([]models.EntitlementContact, error)
	ListMyTrainers(ctx context.Context, studentID int64) ([]models.EntitlementContact, error)
	DashboardStats(ctx context.Context, trainerID int64) (*models.DashboardStats, error)
}

type EntitlementHandler struct {
	service entitlementApplicationService
}

func NewEntitlementHandler(service *services.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

type createEntitlementRequest struct {
	StudentID     int64   `json:"student_id" validate:"required,gt=0"`
	PackageID     *int64  `json:"package_id" validate:"omitempty,gt=0"`
	TotalSessions *int    `json:"total_sessions" validate:"omitempty,gte=1,lte=500"`
	DurationDays  *int    `json:"duration_days" validate:"omitempty,gte=1,lte=3650"`
	StartDate     *string `json:"start_date"`
}

type adjustEntitlementRequest struct {
	StartDate         *string `json:"start_date"`
	EndDate           *string `json:"end_date"`
	TotalSessions     *int    `json:"total_sessions" validate:"omitempty,gte=1,lte=500"`
	RemainingSessions *int    `json:"remaining_sessions" validate:"omitempty,gte=0"`
	Status            *string `json:"status" validate:"omitempty,oneof=active paused completed expired"`
}

func (h *EntitlementHandler) CreateEntitlement(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createEntitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startDate, err := parseOptionalTime(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "start_date must be RFC3339"})
	}

	ent, err := h.service.CreateDirect(c.Context(), trainerID, services.CreateDirectInput{
		StudentID:     req.StudentID,
		PackageID:     req.PackageID,
		TotalSessions: req.TotalSessions,
		DurationDays:  req.DurationDays,
		StartDate:     startDate,
	})
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entitlement": ent})
}

func (h *EntitlementHandler) AdjustEntitlement(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	entitlementID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || entitlementID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid entitlement id"})
	}

	var req adjustEntitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	startDate, err := parseOptionalTime(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "start_date must be RFC3339"})
	}
	endDate, err := parseOptionalTime(req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "end_date must be RFC3339"})
	}

	ent, err := h.service.Adjust(c.Context(), trainerID, entitlementID,
		services.AdjustEntitlementInput{
			StartDate:         startDate,
			EndDate:           endDate,
			TotalSessions:     req.TotalSessions,
			RemainingSessions: req.RemainingSessions,
			Status:            req.Status,
		})
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"entitlement": ent})
}

func (h *EntitlementHandler) GetEntitlement(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	entitlementID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || entitlementID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid entitlement id"})
	}

	ent, err := h.service.GetByID(c.Context(), actorID, actorRole(c), entitlementID)
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"entitlement": ent})
}

func (h *EntitlementHandler) ListMyEntitlements(c *fiber.Ctx) error {
	if actorRole(c) != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	entitlements, err := h.service.ListForStudent(c.Context(), studentID)
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"entitlements": entitlements})
}

func (h *EntitlementHandler) ListMyStudents(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	students, err := h.service.ListMyStudents(c.Context(), trainerID)
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"students": students})
}

func (h *EntitlementHandler) ListMyTrainers(c *fiber.Ctx) error {
	if actorRole(c) != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	trainers, err := h.service.ListMyTrainers(c.Context(), studentID)
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"trainers": trainers})
}

func (h *EntitlementHandler) DashboardStats(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	stats, err := h.service.DashboardStats(c.Context(), trainerID)
	if err != nil {
		return mapEntitlementError(c, err)
	}

	return c.JSON(fiber.Map{"stats": stats})
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func mapEntitlementError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process entitlement request"})
	}
}

package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

type packageApplicationService interface {
	Create(
		ctx context.Context,
		trainerID int64,
		input services.CreatePackageInput,
	) (*models.Package, error)
	Update(
		ctx context.Context,
		trainerID int64,
		packageID int64,
		input services.UpdatePackageInput,
	) (*models.Package, error)
	GetByID(ctx context.Context, actorID int64, packageID int64) (*models.Package, error)
	ListMine(
		ctx context.Context,
		trainerID int64,
		isActive *bool,
		page int,
		limit int,
	) ([]models.Package, int, error)
	ListPublicByTrainer(ctx context.Context, trainerID int64) ([]models.Package, error)
	Deactivate(ctx context.Context, trainerID int64, packageID int64) (*models.Package, error)
	Delete(ctx context.Context, trainerID int64, packageID int64) error
}

type PackageHandler struct {
	service packageApplicationService
}

func NewPackageHandler(service *services.PackageService) *PackageHandler {
	return &PackageHandler{service: service}
}

type createPackageRequest struct {
	Name          string   `json:"name" validate:"required,min=3,max=80"`
	Description   *string  `json:"description" validate:"omitempty,max=1000"`
	Price         float64  `json:"price" validate:"gte=0,lte=100000000"`
	TotalSessions int      `json:"total_sessions" validate:"required,gte=1,lte=500"`
	DurationDays  int      `json:"duration_days" validate:"required,gte=1,lte=3650"`
	Visibility    string   `json:"visibility" validate:"omitempty,oneof=private public"`
	Tags          []string `json:"tags"`
}

type updatePackageRequest struct {
	Name          *string  `json:"name" validate:"omitempty,min=3,max=80"`
	Description   *string  `json:"description" validate:"omitempty,max=1000"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0,lte=100000000"`
	TotalSessions *int     `json:"total_sessions" validate:"omitempty,gte=1,lte=500"`
	DurationDays  *int     `json:"duration_days" validate:"omitempty,gte=1,lte=3650"`
	IsActive      *bool    `json:"is_active"`
	Visibility    *string  `json:"visibility" validate:"omitempty,oneof=private public"`
	Tags          []string `json:"tags"`
}

func (h *PackageHandler) CreatePackage(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pkg, err := h.service.Create(c.Context(), trainerID, services.CreatePackageInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		TotalSessions: req.TotalSessions,
		DurationDays:  req.DurationDays,
		Visibility:    req.Visibility,
		Tags:          req.Tags,
	})
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) UpdatePackage(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	var req updatePackageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pkg, err := h.service.Update(c.Context(), trainerID, packageID, services.UpdatePackageInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		TotalSessions: req.TotalSessions,
		DurationDays:  req.DurationDays,
		IsActive:      req.IsActive,
		Visibility:    req.Visibility,
		Tags:          req.Tags,
	})
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) GetPackage(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	pkg, err := h.service.GetByID(c.Context(), actorID, packageID)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) ListMyPackages(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	var isActive *bool
	if raw := strings.TrimSpace(c.Query("is_active")); raw != "" {
		value := raw == "true"
		isActive = &value
	}

	packages, total, err := h.service.ListMine(c.Context(), trainerID, isActive, page, limit)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{
		"packages":   packages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *PackageHandler) ListTrainerPackages(c *fiber.Ctx) error {
	trainerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || trainerID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	packages, err := h.service.ListPublicByTrainer(c.Context(), trainerID)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"packages": packages})
}

func (h *PackageHandler) DeactivatePackage(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	pkg, err := h.service.Deactivate(c.Context(), trainerID, packageID)
	if err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"package": pkg})
}

func (h *PackageHandler) DeletePackage(c *fiber.Ctx) error {
	if actorRole(c) != "trainer" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	trainerID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	packageID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || packageID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package id"})
	}

	if err := h.service.Delete(c.Context(), trainerID, packageID); err != nil {
		return mapPackageError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Package deleted"})
}

func mapPackageError(c *fiber.Ctx, err error) error {
	var inUse *services.PackageInUseError
	switch {
	case errors.As(err, &inUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":    inUse.Error(),
			"students": inUse.Students,
		})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Package name already exists for this trainer"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Package not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process package request"})
	}
}

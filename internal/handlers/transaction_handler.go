package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/services"
)

type transactionApplicationService interface {
	Initiate(ctx context.Context, input services.InitiateTransactionInput) (*models.Transaction, error)
	Settle(ctx context.Context, transactionID int64) (*models.Transaction, error)
	GetByID(
		ctx context.Context,
		actorID int64,
		role string,
		transactionID int64,
	) (*models.Transaction, error)
}

type TransactionHandler struct {
	service transactionApplicationService
}

func NewTransactionHandler(service *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

type initiateTransactionRequest struct {
	TrainerID int64  `json:"trainer_id" validate:"required,gt=0"`
	PackageID int64  `json:"package_id" validate:"required,gt=0"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	Method    string `json:"method" validate:"omitempty,max=50"`
}

func (h *TransactionHandler) InitiateTransaction(c *fiber.Ctx) error {
	if actorRole(c) != "student" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	studentID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req initiateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txn, err := h.service.Initiate(c.Context(), services.InitiateTransactionInput{
		StudentID: studentID,
		TrainerID: req.TrainerID,
		PackageID: req.PackageID,
		Amount:    req.Amount,
		Method:    req.Method,
	})
	if err != nil {
		return mapTransactionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": txn})
}

// CompleteTransaction settles a payment. Gateways retry callbacks, so a
// transaction that is already paid answers 200 without side effects.
func (h *TransactionHandler) CompleteTransaction(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	transactionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || transactionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	if _, err := h.service.GetByID(c.Context(), actorID, actorRole(c), transactionID); err != nil {
		return mapTransactionError(c, err)
	}

	txn, err := h.service.Settle(c.Context(), transactionID)
	if err != nil {
		return mapTransactionError(c, err)
	}

	return c.JSON(fiber.Map{"transaction": txn})
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	transactionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || transactionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	txn, err := h.service.GetByID(c.Context(), actorID, actorRole(c), transactionID)
	if err != nil {
		return mapTransactionError(c, err)
	}

	return c.JSON(fiber.Map{"transaction": txn})
}

func mapTransactionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Transaction cannot be settled from its current status"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transaction not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process transaction"})
	}
}

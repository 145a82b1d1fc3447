package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

type transactionStore interface {
	Create(ctx context.Context, input repository.CreateTransactionInput) (*models.Transaction, error)
	GetByID(ctx context.Context, transactionID int64) (*models.Transaction, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		transactionID int64,
		currentStatus string,
		nextStatus string,
	) (*models.Transaction, error)
}

type entitlementCreator interface {
	Create(ctx context.Context, input repository.CreateEntitlementInput) (*models.Entitlement, error)
}

// TransactionService records purchase attempts and settles them. Settlement is
// the single trigger point for entitlement creation and is idempotent: a
// retried gateway callback on an already-paid transaction is a success with no
// side effects.
type TransactionService struct {
	tx              txRunner
	transactionRepo transactionStore
	packageRepo     packageReader
	userRepo        userReader
	notifier        notifier
	methodTag       string
}

func NewTransactionService(
	db *pgxpool.Pool,
	transactionRepo *repository.TransactionRepository,
	packageRepo *repository.PackageRepository,
	userRepo *repository.UserRepository,
	notificationService *NotificationService,
	methodTag string,
) *TransactionService {
	return &TransactionService{
		tx:              pgxTxRunner{db: db},
		transactionRepo: transactionRepo,
		packageRepo:     packageRepo,
		userRepo:        userRepo,
		notifier:        notificationService,
		methodTag:       methodTag,
	}
}

type InitiateTransactionInput struct {
	StudentID int64
	TrainerID int64
	PackageID int64
	Amount    int64
	Method    string
}

func (s *TransactionService) Initiate(
	ctx context.Context,
	input InitiateTransactionInput,
) (*models.Transaction, error) {
	if input.StudentID <= 0 || input.TrainerID <= 0 || input.PackageID <= 0 || input.Amount < 0 {
		return nil, ErrInvalidInput
	}

	student, err := s.userRepo.GetByID(ctx, input.StudentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidInput
		}
		return nil, err
	}
	if student.Role != "student" {
		return nil, ErrInvalidInput
	}

	pkg, err := s.packageRepo.GetByID(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.TrainerID != input.TrainerID {
		return nil, ErrInvalidInput
	}

	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = s.methodTag
	}

	gatewayRef := uuid.NewString()
	return s.transactionRepo.Create(ctx, repository.CreateTransactionInput{
		StudentID:      input.StudentID,
		TrainerID:      input.TrainerID,
		PackageID:      input.PackageID,
		Amount:         input.Amount,
		Method:         method,
		TrainerEarning: input.Amount,
		GatewayRef:     &gatewayRef,
	})
}

// Settle moves the transaction to paid and activates the purchased package.
// Safe under at-least-once delivery: the status transition is a conditional
// update, a transaction that is already paid short-circuits to success, and
// the transition plus the entitlement insert commit together, so a failed
// insert never strands a paid transaction without its entitlement.
func (s *TransactionService) Settle(
	ctx context.Context,
	transactionID int64,
) (*models.Transaction, error) {
	if transactionID <= 0 {
		return nil, ErrInvalidInput
	}

	var (
		settled     *models.Transaction
		entitlement *models.Entitlement
		pkg         *models.Package
	)
	err := s.tx.WithinTx(ctx, func(st txStores) error {
		txn, err := st.transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status == "paid" {
			settled = txn
			return nil
		}
		switch txn.Status {
		case "initiated", "pending_gateway":
		default:
			return ErrConflict
		}

		paid, err := st.transactions.UpdateStatusIfCurrent(ctx, txn.ID, txn.Status, "paid")
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the race. If the other settlement won, this retry is a
				// success and must not create a second entitlement.
				current, getErr := st.transactions.GetByID(ctx, txn.ID)
				if getErr != nil {
					return getErr
				}
				if current.Status == "paid" {
					settled = current
					return nil
				}
				return ErrConflict
			}
			return err
		}

		pkg, err = st.packages.GetByID(ctx, paid.PackageID)
		if err != nil {
			return err
		}

		startDate := time.Now().UTC()
		entitlement, err = st.entitlements.Create(ctx, repository.CreateEntitlementInput{
			StudentID:     paid.StudentID,
			TrainerID:     paid.TrainerID,
			PackageID:     &paid.PackageID,
			TransactionID: &paid.ID,
			StartDate:     startDate,
			EndDate:       startDate.AddDate(0, 0, pkg.DurationDays),
			TotalSessions: pkg.TotalSessions,
		})
		if err != nil {
			return err
		}

		settled = paid
		return nil
	})
	if err != nil {
		return nil, err
	}

	if entitlement != nil {
		notifyAsync(s.notifier, settled.StudentID, "package", "Package activated",
			"Your purchased training package is now active.",
			map[string]any{
				"transaction_id": settled.ID,
				"entitlement_id": entitlement.ID,
				"package_id":     pkg.ID,
				"total_sessions": entitlement.TotalSessions,
				"end_date":       entitlement.EndDate,
			})
	}

	return settled, nil
}

func (s *TransactionService) GetByID(
	ctx context.Context,
	actorID int64,
	role string,
	transactionID int64,
) (*models.Transaction, error) {
	txn, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.StudentID != actorID && txn.TrainerID != actorID && role != "admin" {
		return nil, ErrForbidden
	}
	return txn, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type CreateTransactionInput struct {
	StudentID      int64
	TrainerID      int64
	PackageID      int64
	Amount         int64
	Method         string
	PlatformFee    int64
	TrainerEarning int64
	GatewayRef     *string
}

const transactionColumns = `id, student_id, trainer_id, package_id, amount, method,
		status, platform_fee, trainer_earning, gateway_ref, created_at, updated_at`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(row interface{ Scan(dest ...any) error }) (*models.Transaction, error) {
	var txn models.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.StudentID,
		&txn.TrainerID,
		&txn.PackageID,
		&txn.Amount,
		&txn.Method,
		&txn.Status,
		&txn.PlatformFee,
		&txn.TrainerEarning,
		&txn.GatewayRef,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) Create(
	ctx context.Context,
	input CreateTransactionInput,
) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		INSERT INTO transactions
			(student_id, trainer_id, package_id, amount, method, status,
			 platform_fee, trainer_earning, gateway_ref)
		VALUES ($1, $2, $3, $4, $5, 'initiated', $6, $7, $8)
		RETURNING %s
	`, transactionColumns)
	return scanTransaction(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TrainerID,
		input.PackageID,
		input.Amount,
		input.Method,
		input.PlatformFee,
		input.TrainerEarning,
		input.GatewayRef,
	))
}

func (r *TransactionRepository) GetByID(
	ctx context.Context,
	transactionID int64,
) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE id = $1
	`, transactionColumns)
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID))
}

// UpdateStatusIfCurrent is the settlement guard: the transition happens only
// when the row still carries the expected status, so two racing settlements
// resolve to exactly one winner.
func (r *TransactionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	transactionID int64,
	currentStatus string,
	nextStatus string,
) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		UPDATE transactions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, transactionColumns)
	return scanTransaction(r.db.QueryRow(ctx, query, transactionID, currentStatus, nextStatus))
}

// SumPaidEarningsByTrainer totals the trainer's share across settled
// transactions.
func (r *TransactionRepository) SumPaidEarningsByTrainer(
	ctx context.Context,
	trainerID int64,
) (int64, error) {
	var total int64
	err := r.db.QueryRow(
		ctx,
		`SELECT COALESCE(SUM(trainer_earning), 0) FROM transactions WHERE trainer_id = $1 AND status = 'paid'`,
		trainerID,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

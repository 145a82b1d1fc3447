package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type CreateEntitlementInput struct {
	StudentID        int64
	TrainerID        int64
	PackageID        *int64
	TransactionID    *int64
	StartDate        time.Time
	EndDate          time.Time
	TotalSessions    int
	CreatedByTrainer bool
}

type UpdateEntitlementInput struct {
	StartDate         time.Time
	EndDate           time.Time
	TotalSessions     int
	RemainingSessions int
	Status            string
}

const entitlementColumns = `id, student_id, trainer_id, package_id, transaction_id,
		start_date, end_date, total_sessions, remaining_sessions, status,
		created_by_trainer, created_at, updated_at`

type EntitlementRepository struct {
	db DBTX
}

func NewEntitlementRepository(db DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func scanEntitlement(row interface{ Scan(dest ...any) error }) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := row.Scan(
		&ent.ID,
		&ent.StudentID,
		&ent.TrainerID,
		&ent.PackageID,
		&ent.TransactionID,
		&ent.StartDate,
		&ent.EndDate,
		&ent.TotalSessions,
		&ent.RemainingSessions,
		&ent.Status,
		&ent.CreatedByTrainer,
		&ent.CreatedAt,
		&ent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// Create inserts an entitlement with remaining_sessions equal to
// total_sessions and status active.
func (r *EntitlementRepository) Create(
	ctx context.Context,
	input CreateEntitlementInput,
) (*models.Entitlement, error) {
	query := fmt.Sprintf(`
		INSERT INTO student_packages
			(student_id, trainer_id, package_id, transaction_id, start_date, end_date,
			 total_sessions, remaining_sessions, status, created_by_trainer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 'active', $8)
		RETURNING %s
	`, entitlementColumns)
	return scanEntitlement(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TrainerID,
		input.PackageID,
		input.TransactionID,
		input.StartDate.UTC(),
		input.EndDate.UTC(),
		input.TotalSessions,
		input.CreatedByTrainer,
	))
}

func (r *EntitlementRepository) GetByID(
	ctx context.Context,
	entitlementID int64,
) (*models.Entitlement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM student_packages
		WHERE id = $1
	`, entitlementColumns)
	return scanEntitlement(r.db.QueryRow(ctx, query, entitlementID))
}

// Update writes the adjustable fields and clamps remaining_sessions to
// total_sessions in the statement itself, so the invariant holds no matter
// which fields the caller patched.
func (r *EntitlementRepository) Update(
	ctx context.Context,
	entitlementID int64,
	input UpdateEntitlementInput,
) (*models.Entitlement, error) {
	query := fmt.Sprintf(`
		UPDATE student_packages
		SET start_date = $2, end_date = $3, total_sessions = $4,
			remaining_sessions = LEAST($5, $4), status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, entitlementColumns)
	return scanEntitlement(r.db.QueryRow(
		ctx,
		query,
		entitlementID,
		input.StartDate.UTC(),
		input.EndDate.UTC(),
		input.TotalSessions,
		input.RemainingSessions,
		input.Status,
	))
}

func (r *EntitlementRepository) listByColumn(
	ctx context.Context,
	column string,
	id int64,
) ([]models.Entitlement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM student_packages
		WHERE %s = $1
		ORDER BY start_date DESC, id DESC
	`, entitlementColumns, column)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entitlements := make([]models.Entitlement, 0)
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		entitlements = append(entitlements, *ent)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entitlements, nil
}

func (r *EntitlementRepository) ListByStudent(
	ctx context.Context,
	studentID int64,
) ([]models.Entitlement, error) {
	return r.listByColumn(ctx, "student_id", studentID)
}

func (r *EntitlementRepository) ListByTrainer(
	ctx context.Context,
	trainerID int64,
) ([]models.Entitlement, error) {
	return r.listByColumn(ctx, "trainer_id", trainerID)
}

func (r *EntitlementRepository) ListActiveByStudent(
	ctx context.Context,
	studentID int64,
) ([]models.Entitlement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM student_packages
		WHERE student_id = $1 AND status = 'active'
		ORDER BY start_date DESC, id DESC
	`, entitlementColumns)

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entitlements := make([]models.Entitlement, 0)
	for rows.Next() {
		ent, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		entitlements = append(entitlements, *ent)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entitlements, nil
}

func (r *EntitlementRepository) CountActiveByPackage(
	ctx context.Context,
	packageID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM student_packages WHERE package_id = $1 AND status = 'active'`,
		packageID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EntitlementRepository) CountByPackage(
	ctx context.Context,
	packageID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM student_packages WHERE package_id = $1`,
		packageID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountSoldByTrainer counts the trainer's grants excluding paused ones.
func (r *EntitlementRepository) CountSoldByTrainer(
	ctx context.Context,
	trainerID int64,
) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM student_packages WHERE trainer_id = $1 AND status <> 'paused'`,
		trainerID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EntitlementRepository) CountDistinctStudentsByTrainer(
	ctx context.Context,
	trainerID int64,
) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(DISTINCT student_id) FROM student_packages WHERE trainer_id = $1 AND status <> 'paused'`,
		trainerID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type CreatePackageInput struct {
	TrainerID     int64
	Name          string
	Description   *string
	Price         int64
	TotalSessions int
	DurationDays  int
	Visibility    string
	Tags          []string
}

type PackageListFilter struct {
	TrainerID int64
	IsActive  *bool
	Page      int
	Limit     int
}

const packageColumns = `id, trainer_id, name, description, price, total_sessions,
		duration_days, is_active, visibility, tags, created_at, updated_at`

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

func scanPackage(row interface{ Scan(dest ...any) error }) (*models.Package, error) {
	var pkg models.Package
	err := row.Scan(
		&pkg.ID,
		&pkg.TrainerID,
		&pkg.Name,
		&pkg.Description,
		&pkg.Price,
		&pkg.TotalSessions,
		&pkg.DurationDays,
		&pkg.IsActive,
		&pkg.Visibility,
		&pkg.Tags,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pkg.Tags == nil {
		pkg.Tags = []string{}
	}
	return &pkg, nil
}

func (r *PackageRepository) Create(
	ctx context.Context,
	input CreatePackageInput,
) (*models.Package, error) {
	query := fmt.Sprintf(`
		INSERT INTO packages
			(trainer_id, name, description, price, total_sessions, duration_days, visibility, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s
	`, packageColumns)
	return scanPackage(r.db.QueryRow(
		ctx,
		query,
		input.TrainerID,
		input.Name,
		input.Description,
		input.Price,
		input.TotalSessions,
		input.DurationDays,
		input.Visibility,
		input.Tags,
	))
}

func (r *PackageRepository) GetByID(ctx context.Context, packageID int64) (*models.Package, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM packages
		WHERE id = $1
	`, packageColumns)
	return scanPackage(r.db.QueryRow(ctx, query, packageID))
}

func (r *PackageRepository) ListByTrainer(
	ctx context.Context,
	filter PackageListFilter,
) ([]models.Package, error) {
	args := []any{filter.TrainerID}
	whereParts := []string{"trainer_id = $1"}

	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		whereParts = append(whereParts, fmt.Sprintf("is_active = $%d", len(args)))
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM packages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, packageColumns, strings.Join(whereParts, " AND "), len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]models.Package, 0)
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

func (r *PackageRepository) CountByTrainer(
	ctx context.Context,
	trainerID int64,
	isActive *bool,
) (int, error) {
	args := []any{trainerID}
	query := `SELECT COUNT(*) FROM packages WHERE trainer_id = $1`
	if isActive != nil {
		args = append(args, *isActive)
		query += ` AND is_active = $2`
	}

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PackageRepository) ListActivePublicByTrainer(
	ctx context.Context,
	trainerID int64,
) ([]models.Package, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM packages
		WHERE trainer_id = $1 AND is_active = TRUE AND visibility = 'public'
		ORDER BY created_at DESC, id DESC
	`, packageColumns)

	rows, err := r.db.Query(ctx, query, trainerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]models.Package, 0)
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

func (r *PackageRepository) Update(ctx context.Context, pkg *models.Package) (*models.Package, error) {
	query := fmt.Sprintf(`
		UPDATE packages
		SET name = $2, description = $3, price = $4, total_sessions = $5,
			duration_days = $6, is_active = $7, visibility = $8, tags = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, packageColumns)
	return scanPackage(r.db.QueryRow(
		ctx,
		query,
		pkg.ID,
		pkg.Name,
		pkg.Description,
		pkg.Price,
		pkg.TotalSessions,
		pkg.DurationDays,
		pkg.IsActive,
		pkg.Visibility,
		pkg.Tags,
	))
}

func (r *PackageRepository) SetActive(
	ctx context.Context,
	packageID int64,
	isActive bool,
) (*models.Package, error) {
	query := fmt.Sprintf(`
		UPDATE packages
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, packageColumns)
	return scanPackage(r.db.QueryRow(ctx, query, packageID, isActive))
}

func (r *PackageRepository) Delete(ctx context.Context, packageID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM packages WHERE id = $1`, packageID)
	return err
}

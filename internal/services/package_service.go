package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

const (
	maxPackagePrice    = 100_000_000
	maxPackageSessions = 500
	maxPackageDuration = 3650
)

// PackageInUseError blocks deactivation or deletion of a template that
// entitlements still reference. It carries the number of blocking students.
type PackageInUseError struct {
	Students int
}

func (e *PackageInUseError) Error() string {
	return fmt.Sprintf("package is in use by %d student(s)", e.Students)
}

func (e *PackageInUseError) Unwrap() error {
	return ErrConflict
}

type packageStore interface {
	Create(ctx context.Context, input repository.CreatePackageInput) (*models.Package, error)
	GetByID(ctx context.Context, packageID int64) (*models.Package, error)
	ListByTrainer(ctx context.Context, filter repository.PackageListFilter) ([]models.Package, error)
	CountByTrainer(ctx context.Context, trainerID int64, isActive *bool) (int, error)
	ListActivePublicByTrainer(ctx context.Context, trainerID int64) ([]models.Package, error)
	Update(ctx context.Context, pkg *models.Package) (*models.Package, error)
	SetActive(ctx context.Context, packageID int64, isActive bool) (*models.Package, error)
	Delete(ctx context.Context, packageID int64) error
}

type entitlementCounter interface {
	CountActiveByPackage(ctx context.Context, packageID int64) (int, error)
	CountByPackage(ctx context.Context, packageID int64) (int, error)
}

type PackageService struct {
	packageRepo     packageStore
	entitlementRepo entitlementCounter
}

func NewPackageService(
	packageRepo *repository.PackageRepository,
	entitlementRepo *repository.EntitlementRepository,
) *PackageService {
	return &PackageService{
		packageRepo:     packageRepo,
		entitlementRepo: entitlementRepo,
	}
}

type CreatePackageInput struct {
	Name          string
	Description   *string
	Price         float64
	TotalSessions int
	DurationDays  int
	Visibility    string
	Tags          []string
}

func (s *PackageService) Create(
	ctx context.Context,
	trainerID int64,
	input CreatePackageInput,
) (*models.Package, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.TotalSessions <= 0 || input.DurationDays <= 0 {
		return nil, ErrInvalidInput
	}
	if input.TotalSessions > maxPackageSessions || input.DurationDays > maxPackageDuration {
		return nil, ErrInvalidInput
	}

	price, err := normalizePrice(input.Price)
	if err != nil {
		return nil, err
	}
	visibility, err := normalizeVisibility(input.Visibility)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packageRepo.Create(ctx, repository.CreatePackageInput{
		TrainerID:     trainerID,
		Name:          name,
		Description:   trimOptional(input.Description),
		Price:         price,
		TotalSessions: input.TotalSessions,
		DurationDays:  input.DurationDays,
		Visibility:    visibility,
		Tags:          normalizeTags(input.Tags),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return pkg, nil
}

type UpdatePackageInput struct {
	Name          *string
	Description   *string
	Price         *float64
	TotalSessions *int
	DurationDays  *int
	IsActive      *bool
	Visibility    *string
	Tags          []string
}

func (s *PackageService) Update(
	ctx context.Context,
	trainerID int64,
	packageID int64,
	input UpdatePackageInput,
) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.TrainerID != trainerID {
		return nil, ErrForbidden
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		pkg.Name = name
	}
	if input.Description != nil {
		pkg.Description = trimOptional(input.Description)
	}
	if input.Price != nil {
		price, err := normalizePrice(*input.Price)
		if err != nil {
			return nil, err
		}
		pkg.Price = price
	}
	if input.TotalSessions != nil {
		if *input.TotalSessions <= 0 || *input.TotalSessions > maxPackageSessions {
			return nil, ErrInvalidInput
		}
		pkg.TotalSessions = *input.TotalSessions
	}
	if input.DurationDays != nil {
		if *input.DurationDays <= 0 || *input.DurationDays > maxPackageDuration {
			return nil, ErrInvalidInput
		}
		pkg.DurationDays = *input.DurationDays
	}
	if input.IsActive != nil {
		pkg.IsActive = *input.IsActive
	}
	if input.Visibility != nil {
		visibility, err := normalizeVisibility(*input.Visibility)
		if err != nil {
			return nil, err
		}
		pkg.Visibility = visibility
	}
	if input.Tags != nil {
		pkg.Tags = normalizeTags(input.Tags)
	}

	updated, err := s.packageRepo.Update(ctx, pkg)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (s *PackageService) GetByID(
	ctx context.Context,
	actorID int64,
	packageID int64,
) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.TrainerID != actorID && pkg.Visibility != "public" {
		return nil, ErrForbidden
	}
	return pkg, nil
}

func (s *PackageService) ListMine(
	ctx context.Context,
	trainerID int64,
	isActive *bool,
	page int,
	limit int,
) ([]models.Package, int, error) {
	packages, err := s.packageRepo.ListByTrainer(ctx, repository.PackageListFilter{
		TrainerID: trainerID,
		IsActive:  isActive,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.packageRepo.CountByTrainer(ctx, trainerID, isActive)
	if err != nil {
		return nil, 0, err
	}
	return packages, total, nil
}

func (s *PackageService) ListPublicByTrainer(
	ctx context.Context,
	trainerID int64,
) ([]models.Package, error) {
	return s.packageRepo.ListActivePublicByTrainer(ctx, trainerID)
}

// Deactivate hides the template. Blocked while any student still holds an
// active entitlement stamped from it.
func (s *PackageService) Deactivate(
	ctx context.Context,
	trainerID int64,
	packageID int64,
) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.TrainerID != trainerID {
		return nil, ErrForbidden
	}

	activeCount, err := s.entitlementRepo.CountActiveByPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if activeCount > 0 {
		return nil, &PackageInUseError{Students: activeCount}
	}

	return s.packageRepo.SetActive(ctx, packageID, false)
}

// Delete removes the template for good. Blocked while any entitlement
// references it, active or not: the ledger stays auditable.
func (s *PackageService) Delete(ctx context.Context, trainerID int64, packageID int64) error {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	if pkg.TrainerID != trainerID {
		return ErrForbidden
	}

	usedCount, err := s.entitlementRepo.CountByPackage(ctx, packageID)
	if err != nil {
		return err
	}
	if usedCount > 0 {
		return &PackageInUseError{Students: usedCount}
	}

	return s.packageRepo.Delete(ctx, packageID)
}

// normalizePrice rounds to whole currency units on every write and bounds the
// result; zero is allowed for internal or promotional packages.
func normalizePrice(price float64) (int64, error) {
	rounded := int64(math.Round(price))
	if rounded < 0 || rounded > maxPackagePrice {
		return 0, ErrInvalidInput
	}
	return rounded, nil
}

func normalizeVisibility(visibility string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(visibility)) {
	case "":
		return "private", nil
	case "private":
		return "private", nil
	case "public":
		return "public", nil
	default:
		return "", ErrInvalidInput
	}
}

func normalizeTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

type entitlementStore interface {
	Create(ctx context.Context, input repository.CreateEntitlementInput) (*models.Entitlement, error)
	GetByID(ctx context.Context, entitlementID int64) (*models.Entitlement, error)
	Update(
		ctx context.Context,
		entitlementID int64,
		input repository.UpdateEntitlementInput,
	) (*models.Entitlement, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Entitlement, error)
	ListByTrainer(ctx context.Context, trainerID int64) ([]models.Entitlement, error)
	ListActiveByStudent(ctx context.Context, studentID int64) ([]models.Entitlement, error)
	CountSoldByTrainer(ctx context.Context, trainerID int64) (int64, error)
	CountDistinctStudentsByTrainer(ctx context.Context, trainerID int64) (int64, error)
}

type packageCounter interface {
	CountByTrainer(ctx context.Context, trainerID int64, isActive *bool) (int, error)
}

type earningsSummer interface {
	SumPaidEarningsByTrainer(ctx context.Context, trainerID int64) (int64, error)
}

type packageReader interface {
	GetByID(ctx context.Context, packageID int64) (*models.Package, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
}

// EntitlementService manages assigned packages: direct grants by a trainer,
// owner-scoped adjustments, and the roster views both parties read.
type EntitlementService struct {
	entitlementRepo entitlementStore
	packageRepo     packageReader
	packageCounts   packageCounter
	userRepo        userReader
	earnings        earningsSummer
}

func NewEntitlementService(
	entitlementRepo *repository.EntitlementRepository,
	packageRepo *repository.PackageRepository,
	userRepo *repository.UserRepository,
	transactionRepo *repository.TransactionRepository,
) *EntitlementService {
	return &EntitlementService{
		entitlementRepo: entitlementRepo,
		packageRepo:     packageRepo,
		packageCounts:   packageRepo,
		userRepo:        userRepo,
		earnings:        transactionRepo,
	}
}

type CreateDirectInput struct {
	StudentID     int64
	PackageID     *int64
	TotalSessions *int
	DurationDays  *int
	StartDate     *time.Time
}

// CreateDirect grants a student an entitlement without a purchase. Session
// count and duration come from the explicit arguments, falling back to the
// referenced template, which must belong to the calling trainer.
func (s *EntitlementService) CreateDirect(
	ctx context.Context,
	trainerID int64,
	input CreateDirectInput,
) (*models.Entitlement, error) {
	if input.StudentID <= 0 {
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

	totalSessions := 0
	durationDays := 0
	if input.TotalSessions != nil {
		totalSessions = *input.TotalSessions
	}
	if input.DurationDays != nil {
		durationDays = *input.DurationDays
	}

	if input.PackageID != nil {
		pkg, err := s.packageRepo.GetByID(ctx, *input.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.TrainerID != trainerID {
			return nil, ErrForbidden
		}
		if totalSessions == 0 {
			totalSessions = pkg.TotalSessions
		}
		if durationDays == 0 {
			durationDays = pkg.DurationDays
		}
	}

	if totalSessions <= 0 || durationDays <= 0 {
		return nil, ErrInvalidInput
	}

	startDate := time.Now().UTC()
	if input.StartDate != nil && !input.StartDate.IsZero() {
		startDate = input.StartDate.UTC()
	}

	return s.entitlementRepo.Create(ctx, repository.CreateEntitlementInput{
		StudentID:        input.StudentID,
		TrainerID:        trainerID,
		PackageID:        input.PackageID,
		StartDate:        startDate,
		EndDate:          startDate.AddDate(0, 0, durationDays),
		TotalSessions:    totalSessions,
		CreatedByTrainer: true,
	})
}

type AdjustEntitlementInput struct {
	StartDate         *time.Time
	EndDate           *time.Time
	TotalSessions     *int
	RemainingSessions *int
	Status            *string
}

// Adjust applies a partial update. Whatever fields were patched, remaining
// sessions end up clamped to the total: the invariant is a post-condition, not
// a per-field check.
func (s *EntitlementService) Adjust(
	ctx context.Context,
	trainerID int64,
	entitlementID int64,
	input AdjustEntitlementInput,
) (*models.Entitlement, error) {
	ent, err := s.entitlementRepo.GetByID(ctx, entitlementID)
	if err != nil {
		return nil, err
	}
	if ent.TrainerID != trainerID {
		return nil, ErrForbidden
	}

	if input.StartDate != nil {
		ent.StartDate = input.StartDate.UTC()
	}
	if input.EndDate != nil {
		ent.EndDate = input.EndDate.UTC()
	}
	if input.TotalSessions != nil {
		if *input.TotalSessions <= 0 {
			return nil, ErrInvalidInput
		}
		ent.TotalSessions = *input.TotalSessions
	}
	if input.RemainingSessions != nil {
		if *input.RemainingSessions < 0 {
			return nil, ErrInvalidInput
		}
		ent.RemainingSessions = *input.RemainingSessions
	}
	if input.Status != nil {
		switch *input.Status {
		case "active", "paused", "completed", "expired":
			ent.Status = *input.Status
		default:
			return nil, ErrInvalidInput
		}
	}

	if ent.RemainingSessions > ent.TotalSessions {
		ent.RemainingSessions = ent.TotalSessions
	}

	return s.entitlementRepo.Update(ctx, ent.ID, repository.UpdateEntitlementInput{
		StartDate:         ent.StartDate,
		EndDate:           ent.EndDate,
		TotalSessions:     ent.TotalSessions,
		RemainingSessions: ent.RemainingSessions,
		Status:            ent.Status,
	})
}

func (s *EntitlementService) GetByID(
	ctx context.Context,
	actorID int64,
	role string,
	entitlementID int64,
) (*models.Entitlement, error) {
	ent, err := s.entitlementRepo.GetByID(ctx, entitlementID)
	if err != nil {
		return nil, err
	}
	if ent.StudentID != actorID && ent.TrainerID != actorID && role != "admin" {
		return nil, ErrForbidden
	}
	return ent, nil
}

func (s *EntitlementService) ListForStudent(
	ctx context.Context,
	studentID int64,
) ([]models.Entitlement, error) {
	return s.entitlementRepo.ListByStudent(ctx, studentID)
}

// ListMyStudents returns each of the trainer's students once, carrying the
// most recent entitlement between the pair.
func (s *EntitlementService) ListMyStudents(
	ctx context.Context,
	trainerID int64,
) ([]models.EntitlementContact, error) {
	entitlements, err := s.entitlementRepo.ListByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	return s.buildContacts(ctx, entitlements, func(ent models.Entitlement) int64 {
		return ent.StudentID
	}, true)
}

// ListMyTrainers projects the student's active entitlements per trainer.
func (s *EntitlementService) ListMyTrainers(
	ctx context.Context,
	studentID int64,
) ([]models.EntitlementContact, error) {
	entitlements, err := s.entitlementRepo.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.buildContacts(ctx, entitlements, func(ent models.Entitlement) int64 {
		return ent.TrainerID
	}, false)
}

// DashboardStats aggregates the trainer's sales figures. Paused grants are
// excluded from the sold and student counts; revenue covers settled
// transactions only.
func (s *EntitlementService) DashboardStats(
	ctx context.Context,
	trainerID int64,
) (*models.DashboardStats, error) {
	sold, err := s.entitlementRepo.CountSoldByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	students, err := s.entitlementRepo.CountDistinctStudentsByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	active := true
	templates, err := s.packageCounts.CountByTrainer(ctx, trainerID, &active)
	if err != nil {
		return nil, err
	}

	revenue, err := s.earnings.SumPaidEarningsByTrainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		StudentCount:         students,
		SoldPackageCount:     sold,
		PackageTemplateCount: int64(templates),
		TotalRevenue:         revenue,
	}, nil
}

func (s *EntitlementService) buildContacts(
	ctx context.Context,
	entitlements []models.Entitlement,
	counterpart func(models.Entitlement) int64,
	uniquePerUser bool,
) ([]models.EntitlementContact, error) {
	userIDs := make([]int64, 0, len(entitlements))
	for _, ent := range entitlements {
		userIDs = append(userIDs, counterpart(ent))
	}

	users, err := s.userRepo.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(entitlements))
	contacts := make([]models.EntitlementContact, 0, len(entitlements))
	for _, ent := range entitlements {
		userID := counterpart(ent)
		user, ok := users[userID]
		if !ok {
			continue
		}
		if uniquePerUser {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
		}
		contacts = append(contacts, models.EntitlementContact{
			UserID:            user.ID,
			Email:             user.Email,
			EntitlementID:     ent.ID,
			PackageID:         ent.PackageID,
			TotalSessions:     ent.TotalSessions,
			RemainingSessions: ent.RemainingSessions,
			StartDate:         ent.StartDate,
			EndDate:           ent.EndDate,
			Status:            ent.Status,
		})
	}

	return contacts, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type CreateChangeRequestInput struct {
	SessionID    int64
	StudentID    int64
	TrainerID    int64
	Reason       string
	NewStartTime time.Time
	NewEndTime   time.Time
}

const changeRequestColumns = `id, session_id, student_id, trainer_id, reason,
		new_start_time, new_end_time, status, reject_reason, created_at, updated_at`

type ChangeRequestRepository struct {
	db DBTX
}

func NewChangeRequestRepository(db DBTX) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

func scanChangeRequest(row interface{ Scan(dest ...any) error }) (*models.ChangeRequest, error) {
	var request models.ChangeRequest
	err := row.Scan(
		&request.ID,
		&request.SessionID,
		&request.StudentID,
		&request.TrainerID,
		&request.Reason,
		&request.NewStartTime,
		&request.NewEndTime,
		&request.Status,
		&request.RejectReason,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *ChangeRequestRepository) Create(
	ctx context.Context,
	input CreateChangeRequestInput,
) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`
		INSERT INTO session_change_requests
			(session_id, student_id, trainer_id, reason, new_start_time, new_end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING %s
	`, changeRequestColumns)
	return scanChangeRequest(r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.StudentID,
		input.TrainerID,
		input.Reason,
		input.NewStartTime.UTC(),
		input.NewEndTime.UTC(),
	))
}

func (r *ChangeRequestRepository) GetPendingBySessionID(
	ctx context.Context,
	sessionID int64,
) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM session_change_requests
		WHERE session_id = $1 AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1
	`, changeRequestColumns)
	return scanChangeRequest(r.db.QueryRow(ctx, query, sessionID))
}

// ExpirePendingBySessionID supersedes any still-pending rows for the session
// in one conditional update, so a resubmission never leaves two rows pending.
func (r *ChangeRequestRepository) ExpirePendingBySessionID(
	ctx context.Context,
	sessionID int64,
) (int64, error) {
	query := `
		UPDATE session_change_requests
		SET status = 'expired', updated_at = NOW()
		WHERE session_id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkApprovedIfPending resolves the row only while it is still pending;
// a superseded or already-resolved row surfaces as pgx.ErrNoRows.
func (r *ChangeRequestRepository) MarkApprovedIfPending(
	ctx context.Context,
	requestID int64,
) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`
		UPDATE session_change_requests
		SET status = 'approved', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, changeRequestColumns)
	return scanChangeRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *ChangeRequestRepository) MarkRejectedIfPending(
	ctx context.Context,
	requestID int64,
	rejectReason string,
) (*models.ChangeRequest, error) {
	query := fmt.Sprintf(`
		UPDATE session_change_requests
		SET status = 'rejected', reject_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, changeRequestColumns)
	return scanChangeRequest(r.db.QueryRow(ctx, query, requestID, rejectReason))
}

func (r *ChangeRequestRepository) ListPendingByTrainerID(
	ctx context.Context,
	trainerID int64,
) ([]models.ChangeRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM session_change_requests
		WHERE trainer_id = $1 AND status = 'pending'
		ORDER BY created_at ASC, id ASC
	`, changeRequestColumns)

	rows, err := r.db.Query(ctx, query, trainerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.ChangeRequest, 0)
	for rows.Next() {
		request, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

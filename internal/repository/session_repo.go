package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fitlink-platform/fitlink-backend/internal/models"
)

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

const sessionColumns = `id, trainer_id, student_id, start_time, end_time, status,
		request_type, request_status, request_reason, created_at, updated_at`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.TrainerID,
		&session.StudentID,
		&session.StartTime,
		&session.EndTime,
		&session.Status,
		&session.RequestType,
		&session.RequestStatus,
		&session.RequestReason,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "student_id"
	if filter.Role == "trainer" {
		actorColumn = "trainer_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "end_time > NOW()")
	case "past":
		whereParts = append(whereParts, "end_time <= NOW()")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY start_time ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// SetPendingRequest records the shadow state of a newly submitted request.
func (r *SessionRepository) SetPendingRequest(
	ctx context.Context,
	sessionID int64,
	requestType string,
	requestStatus string,
	reason string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET request_type = $2, request_status = $3, request_reason = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, requestType, requestStatus, reason))
}

// ClearPendingRequest resets the shadow state so a new request can be
// submitted. All three request columns go null together.
func (r *SessionRepository) ClearPendingRequest(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET request_type = NULL, request_status = NULL, request_reason = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) UpdateTimes(
	ctx context.Context,
	sessionID int64,
	startTime time.Time,
	endTime time.Time,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET start_time = $2, end_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, startTime.UTC(), endTime.UTC()))
}

func (r *SessionRepository) UpdateStatus(
	ctx context.Context,
	sessionID int64,
	status string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, status))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus string,
	nextStatus string,
) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

// HasConflictExcludingSession reports whether the trainer already has another
// non-cancelled session overlapping the given window.
func (r *SessionRepository) HasConflictExcludingSession(
	ctx context.Context,
	trainerID int64,
	startTime time.Time,
	endTime time.Time,
	excludedSessionID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM sessions
			WHERE trainer_id = $1
			  AND id <> $4
			  AND status <> 'cancelled'
			  AND start_time < $3
			  AND end_time > $2
		)
	`
	var hasConflict bool
	err := r.db.QueryRow(ctx, query, trainerID, startTime.UTC(), endTime.UTC(), excludedSessionID).
		Scan(&hasConflict)
	if err != nil {
		return false, err
	}
	return hasConflict, nil
}

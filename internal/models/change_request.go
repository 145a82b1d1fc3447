package models

import "time"

// ChangeRequest is an append-only ledger row proposing new times for a
// session. Rows reach approved/rejected/expired exactly once and are never
// mutated afterwards; at most one row per session is pending at a time.
type ChangeRequest struct {
	ID           int64     `json:"id"`
	SessionID    int64     `json:"session_id"`
	StudentID    int64     `json:"student_id"`
	TrainerID    int64     `json:"trainer_id"`
	Reason       string    `json:"reason"`
	NewStartTime time.Time `json:"new_start_time"`
	NewEndTime   time.Time `json:"new_end_time"`
	Status       string    `json:"status"`
	RejectReason *string   `json:"reject_reason"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

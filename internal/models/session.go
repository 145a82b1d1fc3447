package models

import "time"

// Session is one scheduled trainer/student appointment. The request_* columns
// are the shadow state of the one open reschedule/absence request a session may
// carry: request_type and request_status are either both set or both null.
type Session struct {
	ID            int64     `json:"id"`
	TrainerID     int64     `json:"trainer_id"`
	StudentID     int64     `json:"student_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	RequestType   *string   `json:"request_type"`
	RequestStatus *string   `json:"request_status"`
	RequestReason *string   `json:"request_reason"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasOpenRequest reports whether a change or absence request is awaiting the
// trainer's decision.
func (s *Session) HasOpenRequest() bool {
	return s.RequestType != nil
}

// IsTerminal reports whether the session can no longer accept requests.
func (s *Session) IsTerminal() bool {
	return s.Status == "completed" || s.Status == "cancelled"
}

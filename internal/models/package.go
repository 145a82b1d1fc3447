package models

import "time"

// Package is a trainer-defined reusable offering used to stamp out
// entitlements. Price is integer currency units, rounded on every write.
// Name is unique per trainer.
type Package struct {
	ID            int64     `json:"id"`
	TrainerID     int64     `json:"trainer_id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Price         int64     `json:"price"`
	TotalSessions int       `json:"total_sessions"`
	DurationDays  int       `json:"duration_days"`
	IsActive      bool      `json:"is_active"`
	Visibility    string    `json:"visibility"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

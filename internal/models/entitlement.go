package models

import "time"

// Entitlement is a student's purchased or directly assigned allotment of
// sessions with a validity window. remaining_sessions never exceeds
// total_sessions; writes that would overflow are clamped.
type Entitlement struct {
	ID                int64     `json:"id"`
	StudentID         int64     `json:"student_id"`
	TrainerID         int64     `json:"trainer_id"`
	PackageID         *int64    `json:"package_id,omitempty"`
	TransactionID     *int64    `json:"transaction_id,omitempty"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	TotalSessions     int       `json:"total_sessions"`
	RemainingSessions int       `json:"remaining_sessions"`
	Status            string    `json:"status"`
	CreatedByTrainer  bool      `json:"created_by_trainer"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DashboardStats summarizes a trainer's sales: grants handed out, unique
// students served, active templates on offer, and settled revenue.
type DashboardStats struct {
	StudentCount         int64 `json:"student_count"`
	SoldPackageCount     int64 `json:"sold_package_count"`
	PackageTemplateCount int64 `json:"package_template_count"`
	TotalRevenue         int64 `json:"total_revenue"`
}

// EntitlementContact is the roster projection of an entitlement joined with
// the counterpart user (a trainer's student or a student's trainer).
type EntitlementContact struct {
	UserID            int64     `json:"user_id"`
	Email             string    `json:"email"`
	EntitlementID     int64     `json:"entitlement_id"`
	PackageID         *int64    `json:"package_id,omitempty"`
	TotalSessions     int       `json:"total_sessions"`
	RemainingSessions int       `json:"remaining_sessions"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Status            string    `json:"status"`
}

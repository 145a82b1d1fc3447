package models

import "time"

// Transaction records one purchase attempt of a package. Settlement
// (status -> paid) is the single trigger point for entitlement creation and
// happens at most once per transaction.
type Transaction struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	TrainerID      int64     `json:"trainer_id"`
	PackageID      int64     `json:"package_id"`
	Amount         int64     `json:"amount"`
	Method         string    `json:"method"`
	Status         string    `json:"status"`
	PlatformFee    int64     `json:"platform_fee"`
	TrainerEarning int64     `json:"trainer_earning"`
	GatewayRef     *string   `json:"gateway_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

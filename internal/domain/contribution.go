/**
 * @description
 * Contribution, payout and penalty models for the cycle engine. These map
 * directly to their database tables; the uniqueness constraints referenced in
 * the comments are enforced in the schema and are what make orchestrator
 * retries safe.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution statuses.
const (
	ContributionStatusPending = "pending"
	ContributionStatusPaid    = "paid"
	ContributionStatusOverdue = "overdue"
	ContributionStatusWaived  = "waived"
)

// Payout statuses.
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
)

// Penalty types and statuses.
const (
	PenaltyTypeLatePayment   = "late_payment"
	PenaltyTypeMissedPayment = "missed_payment"
	PenaltyTypeEarlyExit     = "early_exit"

	PenaltyStatusApplied = "applied"
	PenaltyStatusPaid    = "paid"
	PenaltyStatusWaived  = "waived"
)

// Contribution is one member's obligation for one cycle. Rows are batch
// created when a cycle opens, never individually; unique on
// (group_id, user_id, cycle_number).
type Contribution struct {
	ID               uuid.UUID       `json:"id"`
	GroupID          uuid.UUID       `json:"group_id"`
	UserID           uuid.UUID       `json:"user_id"`
	CycleNumber      int             `json:"cycle_number"`
	Amount           decimal.Decimal `json:"amount"`
	ServiceFee       decimal.Decimal `json:"service_fee"`
	DueDate          time.Time       `json:"due_date"`
	Status           string          `json:"status"`
	PaidDate         *time.Time      `json:"paid_date,omitempty"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Payout is the single disbursement for a completed cycle; unique on
// (group_id, cycle_number). The amount is derived by the payout calculator,
// never user-supplied.
type Payout struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"group_id"`
	CycleNumber int             `json:"cycle_number"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Reference   *string         `json:"reference,omitempty"` // set by the disburser's status events
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Penalty records a sanction against a member. At most one late_payment
// penalty exists per contribution (partial unique index on contribution_id).
type Penalty struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	GroupID        uuid.UUID       `json:"group_id"`
	ContributionID *uuid.UUID      `json:"contribution_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

/**
 * @description
 * Event payloads exchanged with the rest of the platform over the message
 * broker. Each outbound event kind has its own struct carrying only the
 * fields collaborators need; inbound payloads mirror what the payment and
 * disbursement services publish.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentConfirmedEvent is consumed when the payment service confirms that a
// member's contribution payment has cleared. Delivery is at-least-once: the
// same reference may arrive duplicated or delayed.
type PaymentConfirmedEvent struct {
	Reference   string          `json:"reference"`
	GroupID     uuid.UUID       `json:"group_id"`
	UserID      uuid.UUID       `json:"user_id"`
	CycleNumber int             `json:"cycle_number"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      time.Time       `json:"paid_at"`
}

// PayoutStatusEvent is consumed when the disbursement service reports
// progress on a payout instruction we emitted.
type PayoutStatusEvent struct {
	GroupID     uuid.UUID `json:"group_id"`
	CycleNumber int       `json:"cycle_number"`
	Status      string    `json:"status"` // 'processing', 'completed', 'failed'
	Reference   string    `json:"reference"`
	Reason      string    `json:"reason,omitempty"`
}

// PayoutReadyEvent signals that a cycle completed and a payout instruction is
// ready for disbursement.
type PayoutReadyEvent struct {
	GroupID     uuid.UUID       `json:"group_id"`
	CycleNumber int             `json:"cycle_number"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// PenaltyAppliedEvent signals that a late-payment penalty was assessed.
type PenaltyAppliedEvent struct {
	UserID         uuid.UUID       `json:"user_id"`
	GroupID        uuid.UUID       `json:"group_id"`
	ContributionID uuid.UUID       `json:"contribution_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// CycleAdvancedEvent signals that a group moved to a new cycle.
type CycleAdvancedEvent struct {
	GroupID        uuid.UUID `json:"group_id"`
	NewCycleNumber int       `json:"new_cycle_number"`
}

// GroupCompletedEvent signals that the final cycle of a group settled.
type GroupCompletedEvent struct {
	GroupID uuid.UUID `json:"group_id"`
}

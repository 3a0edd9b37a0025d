/**
 * @description
 * This file defines the core group and membership models for the cycle engine.
 * A group is a rotating-savings circle: a fixed member count, a fixed
 * contribution amount per cycle, and one payout slot per member. The engine
 * owns the group's status and current_cycle fields once the group leaves the
 * forming state; membership rows are created by the membership service and
 * only read here.
 *
 * @notes
 * - Money values use shopspring/decimal to avoid floating-point drift. All
 *   amounts are normalized to two fractional digits, rounded half-up, and
 *   rounding is applied once at the end of a computation, never on
 *   intermediate sums.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Group statuses.
const (
	GroupStatusForming   = "forming"
	GroupStatusActive    = "active"
	GroupStatusCompleted = "completed"
	GroupStatusCancelled = "cancelled"
)

// Contribution frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Member statuses.
const (
	MemberStatusPending   = "pending"
	MemberStatusActive    = "active"
	MemberStatusSuspended = "suspended"
	MemberStatusRemoved   = "removed"
)

// Group represents one savings circle. It maps directly to the `groups` table.
type Group struct {
	ID                        uuid.UUID       `json:"id"`
	Name                      string          `json:"name"`
	ContributionAmount        decimal.Decimal `json:"contribution_amount"`
	Frequency                 string          `json:"frequency"` // 'daily', 'weekly', 'monthly'
	TotalMembers              int             `json:"total_members"`
	CurrentMembers            int             `json:"current_members"`
	SecurityDepositPercentage decimal.Decimal `json:"security_deposit_percentage"`
	ServiceFeePercentage      decimal.Decimal `json:"service_fee_percentage"`
	PenaltyDailyRatePercent   decimal.Decimal `json:"penalty_daily_rate_percent"`
	PenaltyCapPercent         decimal.Decimal `json:"penalty_cap_percent"`
	Status                    string          `json:"status"`
	CurrentCycle              int             `json:"current_cycle"`
	TotalCycles               int             `json:"total_cycles"` // one payout slot per member
	StartDate                 *time.Time      `json:"start_date,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

// Member ties a user to a group with a fixed payout position (1..TotalMembers).
type Member struct {
	ID                     uuid.UUID `json:"id"`
	GroupID                uuid.UUID `json:"group_id"`
	UserID                 uuid.UUID `json:"user_id"`
	Position               int       `json:"position"`
	HasPaidSecurityDeposit bool      `json:"has_paid_security_deposit"`
	Status                 string    `json:"status"`
	JoinedAt               time.Time `json:"joined_at"`
}

// PenaltyPolicy carries the per-group late-payment policy. The numbers are
// stored on the group row rather than hard-coded so operations can tune them
// per circle.
type PenaltyPolicy struct {
	DailyRatePercent decimal.Decimal
	CapPercent       decimal.Decimal
}

// PenaltyPolicy returns the group's policy, falling back to the provided
// defaults when the group row carries zero values.
func (g *Group) PenaltyPolicy(defaults PenaltyPolicy) PenaltyPolicy {
	policy := PenaltyPolicy{
		DailyRatePercent: g.PenaltyDailyRatePercent,
		CapPercent:       g.PenaltyCapPercent,
	}
	if policy.DailyRatePercent.IsZero() {
		policy.DailyRatePercent = defaults.DailyRatePercent
	}
	if policy.CapPercent.IsZero() {
		policy.CapPercent = defaults.CapPercent
	}
	return policy
}

// CycleDueDate computes the contribution due date for a cycle from the
// group's start date and frequency. Cycle 1 is due on the start date itself.
func (g *Group) CycleDueDate(cycleNumber int) time.Time {
	var start time.Time
	if g.StartDate != nil {
		start = *g.StartDate
	} else {
		start = g.CreatedAt
	}

	offset := cycleNumber - 1
	switch g.Frequency {
	case FrequencyDaily:
		return start.AddDate(0, 0, offset)
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*offset)
	case FrequencyMonthly:
		return start.AddDate(0, offset, 0)
	default:
		// Unknown frequencies are treated as monthly, the platform default.
		return start.AddDate(0, offset, 0)
	}
}

/**
 * @description
 * Late-payment penalty calculation. Pure and deterministic: the caller passes
 * the clock, and idempotency (never penalizing the same contribution twice)
 * is the orchestrator's job, enforced through the penalties uniqueness
 * constraint.
 *
 * Policy: rate grows by the group's daily rate for every whole day overdue,
 * capped at the group's cap. Zero days overdue yields a zero penalty, which
 * is a valid result, not an error.
 */

package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// DaysOverdue returns the number of whole 24h days elapsed since the due
// date, never negative.
func DaysOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// CalculatePenalty computes the late-payment penalty for a contribution as of
// the given time. Rounding (half-up, two decimal places) is applied once, to
// the final amount.
func CalculatePenalty(contribution domain.Contribution, policy domain.PenaltyPolicy, now time.Time) decimal.Decimal {
	days := DaysOverdue(contribution.DueDate, now)
	if days == 0 {
		return decimal.Zero
	}

	rate := policy.DailyRatePercent.Mul(decimal.NewFromInt(int64(days)))
	if rate.GreaterThan(policy.CapPercent) {
		rate = policy.CapPercent
	}

	return contribution.Amount.Mul(rate).Div(oneHundred).Round(2)
}

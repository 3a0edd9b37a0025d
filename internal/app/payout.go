/**
 * @description
 * Net payout calculation for a completed cycle. Pure arithmetic: gross is the
 * contribution amount times the member count, the platform keeps the group's
 * service-fee percentage, and the recipient gets the rest. The calculator
 * does not check that the gross was actually collected; completeness is the
 * cycle state machine's job.
 */

package app

import (
	"github.com/shopspring/decimal"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

// CalculatePayout returns the net amount the cycle's recipient receives.
// Rounding (half-up, two decimal places) is applied once, at the final
// result, never on intermediate sums.
func CalculatePayout(group *domain.Group) decimal.Decimal {
	gross := group.ContributionAmount.Mul(decimal.NewFromInt(int64(group.TotalMembers)))
	fee := gross.Mul(group.ServiceFeePercentage).Div(oneHundred)
	return gross.Sub(fee).Round(2)
}

// MemberServiceFeeShare returns one member's share of a cycle's service fee,
// recorded on each contribution row at cycle-open time for audit.
func MemberServiceFeeShare(group *domain.Group) decimal.Decimal {
	return group.ContributionAmount.Mul(group.ServiceFeePercentage).Div(oneHundred).Round(2)
}

package app

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Olamability/SmartAjo-sub002/internal/domain"
)

func TestCalculatePayout(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		members      int
		feePercent   string
		want         string
		wantFeeShare string
	}{
		{"three members ten percent fee", "1000", 3, "10", "2700.00", "100.00"},
		{"no fee", "500", 4, "0", "2000.00", "0.00"},
		{"fractional amounts round once", "333.33", 3, "2.5", "974.99", "8.33"},
		{"twelve member circle", "25000", 12, "1.5", "295500.00", "375.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := &domain.Group{
				ContributionAmount:   decimal.RequireFromString(tt.amount),
				TotalMembers:         tt.members,
				ServiceFeePercentage: decimal.RequireFromString(tt.feePercent),
			}

			got := CalculatePayout(group)
			if got.StringFixed(2) != tt.want {
				t.Fatalf("expected payout %s, got %s", tt.want, got.StringFixed(2))
			}

			share := MemberServiceFeeShare(group)
			if share.StringFixed(2) != tt.wantFeeShare {
				t.Fatalf("expected fee share %s, got %s", tt.wantFeeShare, share.StringFixed(2))
			}
		})
	}
}

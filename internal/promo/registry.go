package promo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefrontlab/storefront-api/internal/pricing"
)

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Seed returns the built-in demo promo codes. Usage counters start at
// zero here; the store overlays live counts from the database.
func Seed(now time.Time) []pricing.PromoCode {
	welcomeExpiry := now.AddDate(0, 3, 0)
	return []pricing.PromoCode{
		{
			Code:           "SAVE10",
			DiscountType:   pricing.PromoPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			MinOrderAmount: decPtr("50"),
			Active:         true,
		},
		{
			Code:          "FLAT20",
			DiscountType:  pricing.PromoFixed,
			DiscountValue: decimal.NewFromInt(20),
			MaxUses:       intPtr(100),
			Active:        true,
		},
		{
			Code:          "WELCOME5",
			DiscountType:  pricing.PromoPercentage,
			DiscountValue: decimal.NewFromInt(5),
			Active:        true,
			ExpiresAt:     &welcomeExpiry,
		},
	}
}

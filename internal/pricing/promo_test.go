package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRegistry(now time.Time) []PromoCode {
	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	maxedOut := 5
	return []PromoCode{
		{Code: "SAVE10", DiscountType: PromoPercentage, DiscountValue: dec("10"), MinOrderAmount: decPtr("50"), Active: true},
		{Code: "FLAT20", DiscountType: PromoFixed, DiscountValue: dec("20"), Active: true},
		{Code: "GONE", DiscountType: PromoPercentage, DiscountValue: dec("15"), Active: false},
		{Code: "OLD", DiscountType: PromoPercentage, DiscountValue: dec("15"), Active: true, ExpiresAt: &expired},
		{Code: "FRESH", DiscountType: PromoPercentage, DiscountValue: dec("15"), Active: true, ExpiresAt: &future},
		{Code: "BUSY", DiscountType: PromoFixed, DiscountValue: dec("5"), Active: true, MaxUses: &maxedOut, CurrentUses: 5},
	}
}

func testEngine(now time.Time) *Engine {
	return NewEngine(Config{}).WithClock(func() time.Time { return now })
}

func TestApplyPromoUnknownCode(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := testEngine(now).ApplyPromo(testRegistry(now), "NOPE", dec("100"))

	require.False(t, res.Valid)
	require.Equal(t, "Invalid promo code", res.Error)
}

func TestApplyPromoInactive(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := testEngine(now).ApplyPromo(testRegistry(now), "GONE", dec("100"))

	require.False(t, res.Valid)
	require.Contains(t, res.Error, "no longer active")
}

func TestApplyPromoExpired(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)
	registry := testRegistry(now)

	res := e.ApplyPromo(registry, "OLD", dec("100"))
	require.False(t, res.Valid)
	require.Contains(t, res.Error, "expired")

	stillValid := e.ApplyPromo(registry, "FRESH", dec("100"))
	require.True(t, stillValid.Valid)
}

func TestApplyPromoUsageLimit(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := testEngine(now).ApplyPromo(testRegistry(now), "BUSY", dec("100"))

	require.False(t, res.Valid)
	require.Contains(t, res.Error, "usage limit")
}

func TestApplyPromoMinimumOrder(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)
	registry := testRegistry(now)

	tooSmall := e.ApplyPromo(registry, "SAVE10", dec("40"))
	require.False(t, tooSmall.Valid)
	require.Equal(t, "Minimum order of $50.00 required", tooSmall.Error)

	ok := e.ApplyPromo(registry, "SAVE10", dec("100"))
	require.True(t, ok.Valid)
	require.Equal(t, "10", ok.Amount.String())
	require.Equal(t, "SAVE10", ok.Code)
}

func TestApplyPromoFixedCappedAtOrderTotal(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)
	registry := testRegistry(now)

	capped := e.ApplyPromo(registry, "FLAT20", dec("15"))
	require.True(t, capped.Valid)
	require.Equal(t, "15", capped.Amount.String())

	full := e.ApplyPromo(registry, "FLAT20", dec("80"))
	require.Equal(t, "20", full.Amount.String())
}

func TestApplyPromoNormalizesInput(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := testEngine(now).ApplyPromo(testRegistry(now), "  save10  ", dec("100"))

	require.True(t, res.Valid)
	require.Equal(t, "SAVE10", res.Code)
}

func TestApplyPromoEmptyCode(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	res := testEngine(now).ApplyPromo(testRegistry(now), "   ", dec("100"))

	require.False(t, res.Valid)
	require.Equal(t, "Invalid promo code", res.Error)
}

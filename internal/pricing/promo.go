package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PromoType distinguishes percentage promos from fixed-amount promos.
type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
)

// PromoCode is one registry entry. The engine treats the registry as
// read-only; usage accounting happens at order placement, not here.
type PromoCode struct {
	Code           string           `json:"code"`
	DiscountType   PromoType        `json:"discountType"`
	DiscountValue  decimal.Decimal  `json:"discountValue"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty"`
	MaxUses        *int             `json:"maxUses,omitempty"`
	CurrentUses    int              `json:"currentUses"`
	Active         bool             `json:"active"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
}

// PromoResult is the structured outcome of promo validation. Failures are
// data, not errors; callers branch on Valid.
type PromoResult struct {
	Valid      bool            `json:"valid"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"discountAmount"`
}

func invalidPromo(message string) PromoResult {
	return PromoResult{Valid: false, Error: message}
}

// ApplyPromo validates a raw code against the registry and the current order
// total (post per-line discounts, pre-tax/shipping). Checks short-circuit in
// a fixed order; the first failure wins. Percentage amounts are rounded to
// two decimals; fixed amounts are capped at the order total and left
// unrounded since they are currency-precision already.
func (e *Engine) ApplyPromo(registry []PromoCode, code string, orderTotal decimal.Decimal) PromoResult {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return invalidPromo("Invalid promo code")
	}

	var promo *PromoCode
	for i := range registry {
		if strings.EqualFold(registry[i].Code, normalized) {
			promo = &registry[i]
			break
		}
	}
	if promo == nil {
		return invalidPromo("Invalid promo code")
	}
	if !promo.Active {
		return invalidPromo("This promo code is no longer active")
	}
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(e.now()) {
		return invalidPromo("This promo code has expired")
	}
	if promo.MaxUses != nil && promo.CurrentUses >= *promo.MaxUses {
		return invalidPromo("This promo code has reached its usage limit")
	}
	if promo.MinOrderAmount != nil && orderTotal.LessThan(*promo.MinOrderAmount) {
		return invalidPromo(fmt.Sprintf("Minimum order of $%s required", promo.MinOrderAmount.StringFixed(2)))
	}

	result := PromoResult{Valid: true, Code: promo.Code}
	switch promo.DiscountType {
	case PromoPercentage:
		result.Percentage = promo.DiscountValue
		result.Amount = round2(orderTotal.Mul(promo.DiscountValue).Div(hundred))
	default:
		// Fixed promos never discount past the order total.
		result.Amount = decimal.Min(promo.DiscountValue, orderTotal)
	}
	return result
}

package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind tags a single applied discount step.
type DiscountKind string

const (
	DiscountProduct DiscountKind = "product"
	DiscountBulk    DiscountKind = "bulk"
	DiscountMember  DiscountKind = "member"
	DiscountPromo   DiscountKind = "promo"
)

// Product is the catalog snapshot the engine prices against. It is never
// mutated here; the catalog service owns the canonical record.
type Product struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Slug               string           `json:"slug"`
	Price              decimal.Decimal  `json:"price"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	Stock              int              `json:"stock"`
	Category           string           `json:"category"`
}

// CartLine pairs a product snapshot with the requested quantity.
type CartLine struct {
	Product Product `json:"product"`
	Qty     int     `json:"qty"`
}

// DiscountBreakdown describes one applied discount step.
type DiscountBreakdown struct {
	Kind       DiscountKind    `json:"kind"`
	Label      string          `json:"label"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// PricingResult is the per-line price breakdown.
type PricingResult struct {
	OriginalPrice decimal.Decimal     `json:"originalPrice"`
	FinalPrice    decimal.Decimal     `json:"finalPrice"`
	Discounts     []DiscountBreakdown `json:"discounts"`
	TotalDiscount decimal.Decimal     `json:"totalDiscount"`
}

// ShippingResult reports the shipping cost decision for a cart total.
type ShippingResult struct {
	Cost                  decimal.Decimal `json:"cost"`
	IsFreeShipping        bool            `json:"isFreeShipping"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold"`
}

// TaxResult reports the flat tax applied at the cart level.
type TaxResult struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	Label  string          `json:"label"`
}

// CartSummary aggregates per-line results plus promo, tax, and shipping.
type CartSummary struct {
	Lines     []PricingResult     `json:"lines"`
	Subtotal  decimal.Decimal     `json:"subtotal"`
	Discounts []DiscountBreakdown `json:"discounts"`
	Promo     *PromoResult        `json:"promo,omitempty"`
	Tax       TaxResult           `json:"tax"`
	Shipping  ShippingResult      `json:"shipping"`
	ItemCount int                 `json:"itemCount"`
	Total     decimal.Decimal     `json:"total"`
}

// Config carries the tunable constants of the engine. Zero values fall back
// to the storefront defaults so a zero Config is usable.
type Config struct {
	BulkQtyThreshold      int
	BulkPercent           decimal.Decimal
	MemberPercent         decimal.Decimal
	TaxRate               decimal.Decimal
	FlatShippingCost      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultConfig returns the stock storefront constants.
func DefaultConfig() Config {
	return Config{
		BulkQtyThreshold:      3,
		BulkPercent:           decimal.NewFromInt(10),
		MemberPercent:         decimal.NewFromInt(5),
		TaxRate:               decimal.NewFromInt(10),
		FlatShippingCost:      decimal.NewFromInt(15),
		FreeShippingThreshold: decimal.NewFromInt(1000),
	}
}

// Engine computes price breakdowns. It is pure and safe for concurrent use;
// every invocation is independent and side-effect free.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine constructs an Engine, falling back to defaults for unset config.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.BulkQtyThreshold <= 0 {
		cfg.BulkQtyThreshold = def.BulkQtyThreshold
	}
	if cfg.BulkPercent.IsZero() {
		cfg.BulkPercent = def.BulkPercent
	}
	if cfg.MemberPercent.IsZero() {
		cfg.MemberPercent = def.MemberPercent
	}
	if cfg.TaxRate.IsZero() {
		cfg.TaxRate = def.TaxRate
	}
	if cfg.FlatShippingCost.IsZero() {
		cfg.FlatShippingCost = def.FlatShippingCost
	}
	if cfg.FreeShippingThreshold.IsZero() {
		cfg.FreeShippingThreshold = def.FreeShippingThreshold
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// WithClock overrides the engine clock. Promo expiry checks use it; tests
// pin it to a fixed instant.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

var hundred = decimal.NewFromInt(100)

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PriceLine computes the breakdown for a single cart line. Discounts apply
// sequentially to the running price, never compounding against the original.
// Per-step amounts are rounded for display only; the running subtraction is
// exact and rounding happens once at the end.
func (e *Engine) PriceLine(p Product, qty int, authenticated bool) PricingResult {
	original := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	running := original
	discounts := []DiscountBreakdown{}

	if p.DiscountPercentage != nil && p.DiscountPercentage.GreaterThan(decimal.Zero) {
		amount := running.Mul(*p.DiscountPercentage).Div(hundred)
		discounts = append(discounts, DiscountBreakdown{
			Kind:       DiscountProduct,
			Label:      fmt.Sprintf("Product discount (%s%%)", p.DiscountPercentage.String()),
			Percentage: *p.DiscountPercentage,
			Amount:     round2(amount),
		})
		running = running.Sub(amount)
	}

	if amount := e.BulkDiscount(running, qty); !amount.IsZero() {
		discounts = append(discounts, DiscountBreakdown{
			Kind:       DiscountBulk,
			Label:      fmt.Sprintf("Bulk discount (%s%%)", e.cfg.BulkPercent.String()),
			Percentage: e.cfg.BulkPercent,
			Amount:     round2(amount),
		})
		running = running.Sub(amount)
	}

	if amount := e.MemberDiscount(running, authenticated); !amount.IsZero() {
		discounts = append(discounts, DiscountBreakdown{
			Kind:       DiscountMember,
			Label:      fmt.Sprintf("Member discount (%s%%)", e.cfg.MemberPercent.String()),
			Percentage: e.cfg.MemberPercent,
			Amount:     round2(amount),
		})
		running = running.Sub(amount)
	}

	final := round2(running)
	return PricingResult{
		OriginalPrice: round2(original),
		FinalPrice:    final,
		Discounts:     discounts,
		TotalDiscount: round2(original.Sub(final)),
	}
}

// BulkDiscount returns the bulk discount amount on the running price, or
// zero when the quantity is below the threshold.
func (e *Engine) BulkDiscount(running decimal.Decimal, qty int) decimal.Decimal {
	if qty < e.cfg.BulkQtyThreshold {
		return decimal.Zero
	}
	return running.Mul(e.cfg.BulkPercent).Div(hundred)
}

// MemberDiscount returns the member discount amount on the running price,
// or zero for guests.
func (e *Engine) MemberDiscount(running decimal.Decimal, authenticated bool) decimal.Decimal {
	if !authenticated {
		return decimal.Zero
	}
	return running.Mul(e.cfg.MemberPercent).Div(hundred)
}

// Shipping decides shipping cost from the post-discount cart total. Free
// shipping requires the total to strictly exceed the threshold.
func (e *Engine) Shipping(total decimal.Decimal) ShippingResult {
	free := total.GreaterThan(e.cfg.FreeShippingThreshold)
	cost := e.cfg.FlatShippingCost
	if free {
		cost = decimal.Zero
	}
	return ShippingResult{
		Cost:                  cost,
		IsFreeShipping:        free,
		FreeShippingThreshold: e.cfg.FreeShippingThreshold,
	}
}

// Tax applies the configured flat tax rate to the given base.
func (e *Engine) Tax(base decimal.Decimal) TaxResult {
	return e.TaxAt(base, e.cfg.TaxRate)
}

// TaxAt applies an explicit percentage rate to the given base.
func (e *Engine) TaxAt(base, rate decimal.Decimal) TaxResult {
	return TaxResult{
		Rate:   rate,
		Amount: round2(base.Mul(rate).Div(hundred)),
		Label:  fmt.Sprintf("Tax (%s%%)", rate.String()),
	}
}

// Summarize prices every line, applies an optional promo code against the
// discounted total, then computes tax and shipping independently from the
// same base.
func (e *Engine) Summarize(lines []CartLine, authenticated bool, promoCode string, registry []PromoCode) CartSummary {
	results := make([]PricingResult, 0, len(lines))
	discounts := []DiscountBreakdown{}
	subtotal := decimal.Zero
	afterDiscounts := decimal.Zero
	itemCount := 0

	for _, line := range lines {
		res := e.PriceLine(line.Product, line.Qty, authenticated)
		results = append(results, res)
		discounts = append(discounts, res.Discounts...)
		subtotal = subtotal.Add(res.OriginalPrice)
		afterDiscounts = afterDiscounts.Add(res.FinalPrice)
		itemCount += line.Qty
	}

	summary := CartSummary{
		Lines:     results,
		Subtotal:  round2(subtotal),
		ItemCount: itemCount,
	}

	if promoCode != "" {
		promo := e.ApplyPromo(registry, promoCode, afterDiscounts)
		summary.Promo = &promo
		if promo.Valid {
			discounts = append(discounts, DiscountBreakdown{
				Kind:       DiscountPromo,
				Label:      fmt.Sprintf("Promo code %s", promo.Code),
				Percentage: promo.Percentage,
				Amount:     promo.Amount,
			})
			afterDiscounts = afterDiscounts.Sub(promo.Amount)
		}
	}

	summary.Discounts = discounts
	summary.Tax = e.Tax(afterDiscounts)
	summary.Shipping = e.Shipping(afterDiscounts)
	summary.Total = round2(afterDiscounts.Add(summary.Tax.Amount).Add(summary.Shipping.Cost))
	return summary
}

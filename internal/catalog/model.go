package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefrontlab/storefront-api/internal/pricing"
)

// Product is the catalog's canonical product record.
type Product struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Slug               string           `json:"slug"`
	Description        string           `json:"description"`
	Price              decimal.Decimal  `json:"price"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	Stock              int              `json:"stock"`
	Category           string           `json:"category"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// InStock reports whether the product can currently be added to a cart.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Pricing converts the record into the snapshot shape the pricing engine consumes.
func (p Product) Pricing() pricing.Product {
	return pricing.Product{
		ID:                 p.ID,
		Name:               p.Name,
		Slug:               p.Slug,
		Price:              p.Price,
		DiscountPercentage: p.DiscountPercentage,
		Stock:              p.Stock,
		Category:           p.Category,
	}
}

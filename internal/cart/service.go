package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/pricing"
)

// ProductSource resolves product snapshots for pricing.
type ProductSource interface {
	ProductByID(ctx context.Context, id string) (pricing.Product, error)
}

// PromoSource supplies the promo codes the engine validates against.
type PromoSource interface {
	Registry(ctx context.Context) ([]pricing.PromoCode, error)
}

// View is a cart document joined with its priced summary.
type View struct {
	Cart    Cart                `json:"cart"`
	Summary pricing.CartSummary `json:"summary"`
}

// Service orchestrates cart persistence and pricing.
type Service struct {
	Store    *Store
	Products ProductSource
	Promos   PromoSource
	Engine   *pricing.Engine
	NotFound func(error) bool
}

// productMissing reports whether the product lookup failed because the
// product no longer exists, as opposed to an infrastructure error.
func (s *Service) productMissing(err error) bool {
	if s.NotFound != nil {
		return s.NotFound(err)
	}
	return false
}

// AddItem validates stock and appends or increments a cart line.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) (View, error) {
	if qty < 1 {
		return View{}, common.NewAppError("BAD_REQUEST", "quantity must be at least 1", http.StatusBadRequest, nil)
	}
	product, err := s.Products.ProductByID(ctx, productID)
	if err != nil {
		if s.productMissing(err) {
			return View{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("resolve product: %w", err)
	}

	current, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	have := 0
	for _, item := range current.Items {
		if item.ProductID == productID {
			have = item.Qty
		}
	}
	if have+qty > product.Stock {
		return View{}, common.NewAppError("INSUFFICIENT_STOCK",
			fmt.Sprintf("only %d in stock", product.Stock), http.StatusUnprocessableEntity, nil)
	}

	cart, err := s.Store.AddItem(ctx, cartID, productID, qty)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart, false)
}

// UpdateQty replaces a line quantity, removing the line at zero.
func (s *Service) UpdateQty(ctx context.Context, cartID, productID string, qty int) (View, error) {
	if qty < 0 {
		return View{}, common.NewAppError("BAD_REQUEST", "quantity cannot be negative", http.StatusBadRequest, nil)
	}
	if qty > 0 {
		product, err := s.Products.ProductByID(ctx, productID)
		if err != nil {
			if s.productMissing(err) {
				return View{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
			}
			return View{}, fmt.Errorf("resolve product: %w", err)
		}
		if qty > product.Stock {
			return View{}, common.NewAppError("INSUFFICIENT_STOCK",
				fmt.Sprintf("only %d in stock", product.Stock), http.StatusUnprocessableEntity, nil)
		}
	}
	cart, err := s.Store.UpdateQty(ctx, cartID, productID, qty)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "cart item not found", http.StatusNotFound, err)
		}
		return View{}, err
	}
	return s.view(ctx, cart, false)
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (View, error) {
	cart, err := s.Store.RemoveItem(ctx, cartID, productID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "cart item not found", http.StatusNotFound, err)
		}
		return View{}, err
	}
	return s.view(ctx, cart, false)
}

// ApplyPromo validates a code against the current cart total and stores
// it only when valid. Invalid codes return the engine's message.
func (s *Service) ApplyPromo(ctx context.Context, cartID, code string, member bool) (View, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return View{}, common.NewAppError("BAD_REQUEST", "promo code is required", http.StatusBadRequest, nil)
	}
	cart, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.resolveLines(ctx, cart)
	if err != nil {
		return View{}, err
	}
	registry, err := s.registry(ctx)
	if err != nil {
		return View{}, err
	}

	preview := s.Engine.Summarize(lines, member, "", nil)
	orderTotal := decimal.Zero
	for _, line := range preview.Lines {
		orderTotal = orderTotal.Add(line.FinalPrice)
	}
	result := s.Engine.ApplyPromo(registry, code, orderTotal)
	if !result.Valid {
		return View{}, common.NewAppError("PROMO_INVALID", result.Error, http.StatusUnprocessableEntity, nil)
	}

	cart, err = s.Store.SetPromo(ctx, cartID, result.Code)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart, member)
}

// RemovePromo clears any applied code.
func (s *Service) RemovePromo(ctx context.Context, cartID string, member bool) (View, error) {
	cart, err := s.Store.ClearPromo(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart, member)
}

// Summary prices the stored cart with its applied promo.
func (s *Service) Summary(ctx context.Context, cartID string, member bool) (View, error) {
	cart, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart, member)
}

// Quote prices the cart with caller-supplied flags without persisting
// anything, so clients can preview member or promo effects.
func (s *Service) Quote(ctx context.Context, cartID string, member bool, promoCode string) (pricing.CartSummary, error) {
	cart, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return pricing.CartSummary{}, err
	}
	lines, err := s.resolveLines(ctx, cart)
	if err != nil {
		return pricing.CartSummary{}, err
	}
	registry, err := s.registry(ctx)
	if err != nil {
		return pricing.CartSummary{}, err
	}
	return s.Engine.Summarize(lines, member, promoCode, registry), nil
}

// Priced loads a cart together with its resolved lines and summary.
// Checkout uses the lines to snapshot order items.
func (s *Service) Priced(ctx context.Context, cartID string, member bool) (Cart, []pricing.CartLine, pricing.CartSummary, error) {
	cart, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return Cart{}, nil, pricing.CartSummary{}, err
	}
	lines, err := s.resolveLines(ctx, cart)
	if err != nil {
		return Cart{}, nil, pricing.CartSummary{}, err
	}
	registry, err := s.registry(ctx)
	if err != nil {
		return Cart{}, nil, pricing.CartSummary{}, err
	}
	return cart, lines, s.Engine.Summarize(lines, member, cart.PromoCode, registry), nil
}

func (s *Service) view(ctx context.Context, cart Cart, member bool) (View, error) {
	lines, err := s.resolveLines(ctx, cart)
	if err != nil {
		return View{}, err
	}
	registry, err := s.registry(ctx)
	if err != nil {
		return View{}, err
	}
	return View{
		Cart:    cart,
		Summary: s.Engine.Summarize(lines, member, cart.PromoCode, registry),
	}, nil
}

// resolveLines joins cart items against live product data. Lines whose
// product has since disappeared are skipped rather than failing the cart.
func (s *Service) resolveLines(ctx context.Context, cart Cart) ([]pricing.CartLine, error) {
	lines := make([]pricing.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.Products.ProductByID(ctx, item.ProductID)
		if err != nil {
			if s.productMissing(err) {
				continue
			}
			return nil, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}
		lines = append(lines, pricing.CartLine{Product: product, Qty: item.Qty})
	}
	return lines, nil
}

func (s *Service) registry(ctx context.Context) ([]pricing.PromoCode, error) {
	if s.Promos == nil {
		return nil, nil
	}
	registry, err := s.Promos.Registry(ctx)
	if err != nil {
		return nil, fmt.Errorf("load promo registry: %w", err)
	}
	return registry, nil
}

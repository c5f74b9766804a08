package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/pricing"
)

var errProductMissing = errors.New("no such product")

type fakeProducts struct {
	byID map[string]pricing.Product
}

func (f *fakeProducts) ProductByID(_ context.Context, id string) (pricing.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return pricing.Product{}, errProductMissing
	}
	return p, nil
}

type fakePromos struct {
	registry []pricing.PromoCode
}

func (f *fakePromos) Registry(_ context.Context) ([]pricing.PromoCode, error) {
	return f.registry, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := &fakeProducts{byID: map[string]pricing.Product{
		"p-plain": {ID: "p-plain", Name: "Plain", Slug: "plain", Price: dec("100"), Stock: 10},
		"p-scarce": {ID: "p-scarce", Name: "Scarce", Slug: "scarce", Price: dec("25"), Stock: 2},
	}}
	promos := &fakePromos{registry: []pricing.PromoCode{
		{Code: "SAVE10", DiscountType: pricing.PromoPercentage, DiscountValue: dec("10"), Active: true},
	}}
	return &Service{
		Store:    &Store{Client: client, TTL: time.Hour},
		Products: products,
		Promos:   promos,
		Engine:   pricing.NewEngine(pricing.DefaultConfig()),
		NotFound: func(err error) bool { return errors.Is(err, errProductMissing) },
	}
}

func TestServiceAddItemPricesCart(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)

	view, err := svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	require.True(t, view.Summary.Subtotal.Equal(dec("100")))
	// 100 + 10% tax + 15 shipping
	require.True(t, view.Summary.Total.Equal(dec("125")), "got %s", view.Summary.Total)
}

func TestServiceAddItemUnknownProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, cart.ID, "ghost", 1)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestServiceAddItemRespectsStock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, cart.ID, "p-scarce", 1)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, cart.ID, "p-scarce", 2)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
}

func TestServiceUpdateQtyStockCheck(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-scarce", 1)
	require.NoError(t, err)

	_, err = svc.UpdateQty(ctx, cart.ID, "p-scarce", 5)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)

	view, err := svc.UpdateQty(ctx, cart.ID, "p-scarce", 2)
	require.NoError(t, err)
	require.Equal(t, 2, view.Cart.Items[0].Qty)
}

func TestServiceApplyPromoValidCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)

	view, err := svc.ApplyPromo(ctx, cart.ID, "save10", false)
	require.NoError(t, err)
	require.Equal(t, "SAVE10", view.Cart.PromoCode)
	require.NotNil(t, view.Summary.Promo)
	require.True(t, view.Summary.Promo.Valid)
	// 100 - 10 promo = 90, +9 tax +15 shipping
	require.True(t, view.Summary.Total.Equal(dec("114")), "got %s", view.Summary.Total)
}

func TestServiceApplyPromoInvalidCodeNotStored(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)

	_, err = svc.ApplyPromo(ctx, cart.ID, "NOPE", false)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PROMO_INVALID", appErr.Code)
	require.Equal(t, "Invalid promo code", appErr.Message)

	view, err := svc.Summary(ctx, cart.ID, false)
	require.NoError(t, err)
	require.Empty(t, view.Cart.PromoCode)
}

func TestServiceRemovePromo(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)
	_, err = svc.ApplyPromo(ctx, cart.ID, "SAVE10", false)
	require.NoError(t, err)

	view, err := svc.RemovePromo(ctx, cart.ID, false)
	require.NoError(t, err)
	require.Empty(t, view.Cart.PromoCode)
	require.True(t, view.Summary.Total.Equal(dec("125")))
}

func TestServiceQuoteDoesNotPersist(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)

	summary, err := svc.Quote(ctx, cart.ID, true, "SAVE10")
	require.NoError(t, err)
	require.NotNil(t, summary.Promo)
	require.True(t, summary.Promo.Valid)
	// member discount applies before the promo
	require.True(t, summary.Subtotal.Equal(dec("100")))

	view, err := svc.Summary(ctx, cart.ID, false)
	require.NoError(t, err)
	require.Empty(t, view.Cart.PromoCode)
	require.Nil(t, view.Summary.Promo)
}

func TestServiceSummarySkipsVanishedProducts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cart, err := svc.Store.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, "p-plain", 1)
	require.NoError(t, err)

	delete(svc.Products.(*fakeProducts).byID, "p-plain")

	view, err := svc.Summary(ctx, cart.ID, false)
	require.NoError(t, err)
	require.Empty(t, view.Summary.Lines)
	require.True(t, view.Summary.Subtotal.IsZero())
}

package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/storefrontlab/storefront-api/internal/cart"
	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/pricing"
	"github.com/storefrontlab/storefront-api/internal/promo"
)

var errMissing = errors.New("no such product")

type fakeProducts struct {
	byID map[string]pricing.Product
}

func (f *fakeProducts) ProductByID(_ context.Context, id string) (pricing.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return pricing.Product{}, errMissing
	}
	return p, nil
}

type fakePromos struct{}

func (fakePromos) Registry(_ context.Context) ([]pricing.PromoCode, error) {
	return promo.Seed(time.Now()), nil
}

type fakeOrders struct {
	orders []Order
	err    error
}

func (f *fakeOrders) CreateOrder(_ context.Context, order Order) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrders) OrderByID(_ context.Context, id string) (Order, error) {
	for _, order := range f.orders {
		if order.ID == id {
			return order, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc    *Service
	cart   *cart.Service
	orders *fakeOrders
	tasks  *fakeEnqueuer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cartSvc := &cart.Service{
		Store: &cart.Store{Client: client, TTL: time.Hour},
		Products: &fakeProducts{byID: map[string]pricing.Product{
			"p-1": {ID: "p-1", Name: "Desk Lamp", Slug: "desk-lamp", Price: dec("100"), Stock: 10},
		}},
		Promos:   fakePromos{},
		Engine:   pricing.NewEngine(pricing.DefaultConfig()),
		NotFound: func(err error) bool { return errors.Is(err, errMissing) },
	}
	orders := &fakeOrders{}
	tasks := &fakeEnqueuer{}
	return fixture{
		svc: &Service{
			Cart:   cartSvc,
			Orders: orders,
			Tasks:  tasks,
			Now:    func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
		},
		cart:   cartSvc,
		orders: orders,
		tasks:  tasks,
	}
}

func (f fixture) newCart(t *testing.T, qty int) string {
	t.Helper()
	ctx := context.Background()
	doc, err := f.cart.Store.Create(ctx)
	require.NoError(t, err)
	if qty > 0 {
		_, err = f.cart.AddItem(ctx, doc.ID, "p-1", qty)
		require.NoError(t, err)
	}
	return doc.ID
}

func TestCreatePlacesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)

	out, err := f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com"})
	require.NoError(t, err)
	require.Equal(t, StatusPlaced, out.Order.Status)
	require.Len(t, out.Order.Lines, 1)
	require.Equal(t, "p-1", out.Order.Lines[0].ProductID)
	// 100 + 10 tax + 15 shipping
	require.True(t, out.Order.Total.Equal(dec("125")), "got %s", out.Order.Total)
	require.Len(t, f.orders.orders, 1)

	// cart is cleared after checkout
	_, err = f.cart.Store.Get(ctx, cartID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCreateEmptyCart(t *testing.T) {
	f := newFixture(t)
	cartID := f.newCart(t, 0)

	_, err := f.svc.Create(context.Background(), Input{CartID: cartID, Email: "shopper@example.com"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CART_EMPTY", appErr.Code)
	require.Empty(t, f.orders.orders)
}

func TestCreateUnknownCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), Input{CartID: "missing", Email: "shopper@example.com"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCreateEnqueuesPromoRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)
	_, err := f.cart.ApplyPromo(ctx, cartID, "SAVE10", false)
	require.NoError(t, err)

	out, err := f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com"})
	require.NoError(t, err)
	require.Equal(t, "SAVE10", out.Order.PromoCode)
	// 100 - 10 promo = 90, +9 tax +15 shipping
	require.True(t, out.Order.Total.Equal(dec("114")), "got %s", out.Order.Total)

	require.Len(t, f.tasks.tasks, 1)
	require.Equal(t, promo.TypeRedeemed, f.tasks.tasks[0].Type())
}

func TestCreateRejectsStalePromo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)
	// simulate a code that was applied before it went bad
	_, err := f.cart.Store.SetPromo(ctx, cartID, "GONECODE")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PROMO_INVALID", appErr.Code)
	require.Empty(t, f.orders.orders)
}

func TestCreateStoreFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)
	f.orders.err = errors.New("db down")

	_, err := f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com"})
	require.Error(t, err)

	_, err = f.cart.Store.Get(ctx, cartID)
	require.NoError(t, err, "cart should survive a failed checkout")
}

func TestGetReturnsPlacedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)

	out, err := f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com"})
	require.NoError(t, err)

	order, err := f.svc.Get(ctx, out.Order.ID)
	require.NoError(t, err)
	require.True(t, order.Total.Equal(out.Order.Total))
	require.Len(t, order.Lines, 1)
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "1aa9aa6c-98b4-4bb2-9d0c-7a4f6e2b4c39")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	_, err = f.svc.Get(context.Background(), "not-a-uuid")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestCreateMemberPricing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1)

	out, err := f.svc.Create(ctx, Input{CartID: cartID, Email: "shopper@example.com", Member: true})
	require.NoError(t, err)
	require.True(t, out.Order.Member)
	// 100 - 5 member = 95, +9.5 tax +15 shipping
	require.True(t, out.Order.Total.Equal(dec("119.5")), "got %s", out.Order.Total)
	require.True(t, out.Order.Discount.Equal(dec("5")))
}

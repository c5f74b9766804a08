package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storefrontlab/storefront-api/internal/cart"
	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/obs"
	"github.com/storefrontlab/storefront-api/internal/promo"
)

// TaskEnqueuer matches the asynq client surface the service needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Input is the checkout request payload.
type Input struct {
	CartID string `json:"cartId" validate:"required,uuid4"`
	Email  string `json:"email" validate:"required,email"`
	Member bool   `json:"member"`
}

// Output returns the placed order.
type Output struct {
	Order Order `json:"order"`
}

// Service turns a cart into a placed order.
type Service struct {
	Cart   *cart.Service
	Orders OrderStore
	Tasks  TaskEnqueuer
	Logger *zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create re-prices the cart, persists the order snapshot, clears the
// cart, and hands promo accounting to the background worker.
func (s *Service) Create(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Cart == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}

	cartDoc, lines, summary, err := s.Cart.Priced(ctx, in.CartID, in.Member)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return Output{}, common.NewAppError("NOT_FOUND", "cart not found", http.StatusNotFound, err)
		}
		return Output{}, err
	}
	if len(lines) == 0 {
		return Output{}, common.NewAppError("CART_EMPTY", "cart has no purchasable items", http.StatusUnprocessableEntity, nil)
	}
	if cartDoc.PromoCode != "" && (summary.Promo == nil || !summary.Promo.Valid) {
		// A code that was valid when applied can expire or sell out
		// before checkout. Fail loudly instead of silently dropping it.
		message := "promo code is no longer valid"
		if summary.Promo != nil && summary.Promo.Error != "" {
			message = summary.Promo.Error
		}
		return Output{}, common.NewAppError("PROMO_INVALID", message, http.StatusUnprocessableEntity, nil)
	}

	order := Order{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Member:    in.Member,
		Status:    StatusPlaced,
		Subtotal:  summary.Subtotal,
		Tax:       summary.Tax.Amount,
		Shipping:  summary.Shipping.Cost,
		Total:     summary.Total,
		CreatedAt: s.now(),
	}
	if summary.Promo != nil && summary.Promo.Valid {
		order.PromoCode = summary.Promo.Code
	}
	for _, d := range summary.Discounts {
		order.Discount = order.Discount.Add(d.Amount)
	}
	for i, line := range lines {
		res := summary.Lines[i]
		order.Lines = append(order.Lines, OrderLine{
			ProductID:     line.Product.ID,
			Name:          line.Product.Name,
			Slug:          line.Product.Slug,
			Qty:           line.Qty,
			UnitPrice:     line.Product.Price,
			OriginalPrice: res.OriginalPrice,
			TotalDiscount: res.TotalDiscount,
			FinalPrice:    res.FinalPrice,
		})
	}

	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		return Output{}, err
	}

	if err := s.Cart.Store.Delete(ctx, cartDoc.ID); err != nil && s.Logger != nil {
		s.Logger.Warn().Err(err).Str("cart_id", cartDoc.ID).Msg("clear cart after checkout")
	}

	if order.PromoCode != "" && s.Tasks != nil {
		task, err := promo.NewRedeemedTask(order.PromoCode, order.ID)
		if err == nil {
			_, err = s.Tasks.EnqueueContext(ctx, task)
		}
		if err != nil && s.Logger != nil {
			s.Logger.Error().Err(err).
				Str("order_id", order.ID).
				Str("code", order.PromoCode).
				Msg("enqueue promo redemption")
		}
	}

	if obs.OrdersPlacedTotal != nil {
		obs.OrdersPlacedTotal.Inc()
	}
	if s.Logger != nil {
		s.Logger.Info().
			Str("order_id", order.ID).
			Str("total", order.Total.StringFixed(2)).
			Int("lines", len(order.Lines)).
			Msg("order placed")
	}
	return Output{Order: order}, nil
}

// Get loads a previously placed order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, common.NewAppError("BAD_REQUEST", "invalid order id", http.StatusBadRequest, err)
	}
	order, err := s.Orders.OrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		return Order{}, err
	}
	return order, nil
}

package promo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storefrontlab/storefront-api/internal/obs"
)

// TypeRedeemed is the task type for promo redemption accounting.
const TypeRedeemed = "promo:redeemed"

// RedeemedPayload carries the details of a promo redeemed at checkout.
type RedeemedPayload struct {
	Code    string `json:"code"`
	OrderID string `json:"orderId"`
}

// NewRedeemedTask builds the asynq task enqueued after checkout.
func NewRedeemedTask(code, orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RedeemedPayload{Code: code, OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("marshal redeemed payload: %w", err)
	}
	return asynq.NewTask(TypeRedeemed, payload, asynq.MaxRetry(5)), nil
}

// Worker processes redemption tasks against the usage store.
type Worker struct {
	Store  *Store
	Logger *zerolog.Logger
}

// HandleRedeemed increments the usage counter for the redeemed code.
func (w *Worker) HandleRedeemed(ctx context.Context, task *asynq.Task) error {
	var payload RedeemedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads will never succeed; drop instead of retrying.
		return fmt.Errorf("decode redeemed payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Code == "" {
		return fmt.Errorf("redeemed payload missing code: %w", asynq.SkipRetry)
	}

	if err := w.Store.Increment(ctx, payload.Code); err != nil {
		if obs.PromoRedemptionsTotal != nil {
			obs.PromoRedemptionsTotal.WithLabelValues(payload.Code, "error").Inc()
		}
		return err
	}
	if obs.PromoRedemptionsTotal != nil {
		obs.PromoRedemptionsTotal.WithLabelValues(payload.Code, "ok").Inc()
	}
	if w.Logger != nil {
		w.Logger.Info().
			Str("code", payload.Code).
			Str("order_id", payload.OrderID).
			Msg("promo redemption recorded")
	}
	return nil
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrItemNotFound indicates the cart holds no line for the product.
var ErrItemNotFound = errors.New("cart item not found")

const keyPrefix = "cart:v1:"

// Item is a single cart line keyed by product.
type Item struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// Cart is the persisted cart document.
type Cart struct {
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
	PromoCode string    `json:"promoCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists cart documents in Redis as JSON blobs. Every write
// refreshes the TTL so active carts never expire mid-session.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func key(id string) string {
	return keyPrefix + id
}

// Create persists a new empty cart and returns it.
func (s *Store) Create(ctx context.Context) (Cart, error) {
	if s == nil || s.Client == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	now := s.now()
	cart := Cart{
		ID:        uuid.NewString(),
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// Get loads a cart by id.
func (s *Store) Get(ctx context.Context, id string) (Cart, error) {
	if s == nil || s.Client == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	data, err := s.Client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return cart, nil
}

// AddItem increments the quantity for a product, appending a new line
// when the cart holds none.
func (s *Store) AddItem(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.update(ctx, id, func(cart *Cart) error {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Qty += qty
				return nil
			}
		}
		cart.Items = append(cart.Items, Item{ProductID: productID, Qty: qty})
		return nil
	})
}

// UpdateQty replaces the quantity for a product. Zero removes the line.
func (s *Store) UpdateQty(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.update(ctx, id, func(cart *Cart) error {
		for i := range cart.Items {
			if cart.Items[i].ProductID != productID {
				continue
			}
			if qty == 0 {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			} else {
				cart.Items[i].Qty = qty
			}
			return nil
		}
		return ErrItemNotFound
	})
}

// RemoveItem drops the line for a product.
func (s *Store) RemoveItem(ctx context.Context, id, productID string) (Cart, error) {
	return s.UpdateQty(ctx, id, productID, 0)
}

// SetPromo records the applied promo code on the cart.
func (s *Store) SetPromo(ctx context.Context, id, code string) (Cart, error) {
	return s.update(ctx, id, func(cart *Cart) error {
		cart.PromoCode = code
		return nil
	})
}

// ClearPromo removes any applied promo code.
func (s *Store) ClearPromo(ctx context.Context, id string) (Cart, error) {
	return s.update(ctx, id, func(cart *Cart) error {
		cart.PromoCode = ""
		return nil
	})
}

// Delete removes the cart document entirely.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.Client == nil {
		return errors.New("cart store not configured")
	}
	return s.Client.Del(ctx, key(id)).Err()
}

func (s *Store) update(ctx context.Context, id string, mutate func(*Cart) error) (Cart, error) {
	cart, err := s.Get(ctx, id)
	if err != nil {
		return Cart{}, err
	}
	if err := mutate(&cart); err != nil {
		return Cart{}, err
	}
	cart.UpdatedAt = s.now()
	if err := s.save(ctx, cart); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (s *Store) save(ctx context.Context, cart Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.Client.Set(ctx, key(cart.ID), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

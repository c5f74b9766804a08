package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderLine is a priced snapshot of one cart line at checkout time.
type OrderLine struct {
	ProductID     string          `json:"productId"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`
}

// Order is the persisted order record with its pricing snapshot.
type Order struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Member    bool            `json:"member"`
	PromoCode string          `json:"promoCode,omitempty"`
	Status    string          `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Lines     []OrderLine     `json:"lines"`
	CreatedAt time.Time       `json:"createdAt"`
}

// StatusPlaced is the only status a demo order ever reaches.
const StatusPlaced = "PLACED"

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore persists and loads orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, order Order) error
	OrderByID(ctx context.Context, id string) (Order, error)
}

// PGStore writes orders and their lines in a single transaction.
type PGStore struct {
	Pool *pgxpool.Pool
}

// CreateOrder inserts the order header and its lines atomically.
func (s PGStore) CreateOrder(ctx context.Context, order Order) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, email, member, promo_code, status, subtotal, discount, tax, shipping, total, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.Email, order.Member, order.PromoCode, order.Status,
		order.Subtotal, order.Discount, order.Tax, order.Shipping, order.Total, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, slug, qty, unit_price, original_price, total_discount, final_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			order.ID, line.ProductID, line.Name, line.Slug, line.Qty,
			line.UnitPrice, line.OriginalPrice, line.TotalDiscount, line.FinalPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", line.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

// OrderByID loads an order and its lines.
func (s PGStore) OrderByID(ctx context.Context, id string) (Order, error) {
	var order Order
	var promoCode *string
	err := s.Pool.QueryRow(ctx, `
		SELECT id, email, member, promo_code, status, subtotal, discount, tax, shipping, total, created_at
		FROM orders WHERE id = $1::uuid`, id,
	).Scan(&order.ID, &order.Email, &order.Member, &promoCode, &order.Status,
		&order.Subtotal, &order.Discount, &order.Tax, &order.Shipping, &order.Total, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	if promoCode != nil {
		order.PromoCode = *promoCode
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, name, slug, qty, unit_price, original_price, total_discount, final_price
		FROM order_items WHERE order_id = $1::uuid ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Slug, &line.Qty,
			&line.UnitPrice, &line.OriginalPrice, &line.TotalDiscount, &line.FinalPrice); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("read order items: %w", err)
	}
	return order, nil
}

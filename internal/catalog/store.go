package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DBTX matches both pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store abstracts the product queries the service needs.
type Store interface {
	List(ctx context.Context, params ListParams) ([]Product, int64, error)
	BySlug(ctx context.Context, slug string) (Product, error)
	ByID(ctx context.Context, id string) (Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// PGStore implements Store over handwritten pgx queries.
type PGStore struct {
	DB DBTX
}

const productColumns = "id, name, slug, description, price, discount_percentage, stock, category, created_at, updated_at"

var sortClauses = map[string]string{
	"newest":     "created_at DESC",
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"name":       "name ASC",
}

// List returns a page of products plus the unpaginated total.
func (s PGStore) List(ctx context.Context, params ListParams) ([]Product, int64, error) {
	where, args := buildFilters(params)

	var total int64
	countSQL := "SELECT count(*) FROM products" + where
	if err := s.DB.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order, ok := sortClauses[params.Sort]
	if !ok {
		order = sortClauses["newest"]
	}
	offset := (params.Page - 1) * params.Limit
	listSQL := fmt.Sprintf(
		"SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d",
		productColumns, where, order, len(args)+1, len(args)+2,
	)
	args = append(args, params.Limit, offset)

	rows, err := s.DB.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// BySlug loads a single product by its URL slug.
func (s PGStore) BySlug(ctx context.Context, slug string) (Product, error) {
	row := s.DB.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM products WHERE slug = $1", productColumns), slug)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ByID loads a single product by identifier.
func (s PGStore) ByID(ctx context.Context, id string) (Product, error) {
	row := s.DB.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM products WHERE id = $1::uuid", productColumns), id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Categories lists the distinct product categories.
func (s PGStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT DISTINCT category FROM products ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func buildFilters(params ListParams) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if params.Query != "" {
		add("name ILIKE '%%' || $%d || '%%'", params.Query)
	}
	if params.Category != "" {
		add("category = $%d", params.Category)
	}
	if params.MinPrice != nil {
		add("price >= $%d", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		add("price <= $%d", *params.MaxPrice)
	}
	if params.InStock != nil {
		if *params.InStock {
			conds = append(conds, "stock > 0")
		} else {
			conds = append(conds, "stock = 0")
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		discount decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price,
		&discount, &p.Stock, &p.Category, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	if discount.Valid {
		d := discount.Decimal
		p.DiscountPercentage = &d
	}
	return p, nil
}

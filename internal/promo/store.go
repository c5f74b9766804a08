package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storefrontlab/storefront-api/internal/pricing"
)

// DBTX matches both pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store overlays live redemption counts onto the seeded promo registry.
// Codes themselves are static; only usage accounting lives in Postgres.
type Store struct {
	DB  DBTX
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Registry returns the promo codes with current usage counts applied.
func (s *Store) Registry(ctx context.Context) ([]pricing.PromoCode, error) {
	registry := Seed(s.now())
	if s == nil || s.DB == nil {
		return registry, nil
	}
	usage, err := s.LoadUsage(ctx)
	if err != nil {
		return nil, err
	}
	for i := range registry {
		registry[i].CurrentUses = usage[registry[i].Code]
	}
	return registry, nil
}

// LoadUsage reads redemption counts keyed by promo code.
func (s *Store) LoadUsage(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, "SELECT code, uses FROM promo_usage")
	if err != nil {
		return nil, fmt.Errorf("load promo usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var code string
		var uses int
		if err := rows.Scan(&code, &uses); err != nil {
			return nil, fmt.Errorf("scan promo usage: %w", err)
		}
		usage[code] = uses
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read promo usage: %w", err)
	}
	return usage, nil
}

// Increment bumps the redemption counter for a code.
func (s *Store) Increment(ctx context.Context, code string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO promo_usage (code, uses, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (code)
		DO UPDATE SET uses = promo_usage.uses + 1, updated_at = now()`,
		code,
	)
	if err != nil {
		return fmt.Errorf("increment promo usage for %s: %w", code, err)
	}
	return nil
}

package promo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/storefrontlab/storefront-api/internal/pricing"
)

func TestSeedContents(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	registry := Seed(now)
	require.Len(t, registry, 3)

	byCode := make(map[string]pricing.PromoCode, len(registry))
	for _, code := range registry {
		byCode[code.Code] = code
	}

	save := byCode["SAVE10"]
	require.Equal(t, pricing.PromoPercentage, save.DiscountType)
	require.True(t, save.DiscountValue.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, save.MinOrderAmount)
	require.True(t, save.MinOrderAmount.Equal(decimal.NewFromInt(50)))
	require.True(t, save.Active)

	flat := byCode["FLAT20"]
	require.Equal(t, pricing.PromoFixed, flat.DiscountType)
	require.NotNil(t, flat.MaxUses)
	require.Equal(t, 100, *flat.MaxUses)
	require.Nil(t, flat.ExpiresAt)

	welcome := byCode["WELCOME5"]
	require.NotNil(t, welcome.ExpiresAt)
	require.True(t, welcome.ExpiresAt.After(now))
}

func TestSeedWorksWithEngine(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	engine := pricing.NewEngine(pricing.DefaultConfig()).WithClock(func() time.Time { return now })

	result := engine.ApplyPromo(Seed(now), "SAVE10", decimal.NewFromInt(100))
	require.True(t, result.Valid)
	require.True(t, result.Amount.Equal(decimal.NewFromInt(10)))

	result = engine.ApplyPromo(Seed(now), "SAVE10", decimal.NewFromInt(40))
	require.False(t, result.Valid)
	require.Equal(t, "Minimum order of $50.00 required", result.Error)
}

type fakeRows struct {
	rows [][2]any
	idx  int
	err  error
}

func (f *fakeRows) Close()                                       {}
func (f *fakeRows) Err() error                                   { return f.err }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}
func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.idx-1]
	*(dest[0].(*string)) = row[0].(string)
	*(dest[1].(*int)) = row[1].(int)
	return nil
}
func (f *fakeRows) Values() ([]any, error) { return nil, nil }
func (f *fakeRows) RawValues() [][]byte    { return nil }
func (f *fakeRows) Conn() *pgx.Conn        { return nil }

type fakeDB struct {
	usage [][2]any
	execs []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, args[0].(string))
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return &fakeRows{rows: f.usage}, nil
}

func TestStoreRegistryOverlaysUsage(t *testing.T) {
	db := &fakeDB{usage: [][2]any{{"FLAT20", 100}}}
	store := &Store{DB: db, Now: func() time.Time {
		return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	}}

	registry, err := store.Registry(context.Background())
	require.NoError(t, err)

	var flat pricing.PromoCode
	for _, code := range registry {
		if code.Code == "FLAT20" {
			flat = code
		}
	}
	require.Equal(t, 100, flat.CurrentUses)

	engine := pricing.NewEngine(pricing.DefaultConfig())
	result := engine.ApplyPromo(registry, "FLAT20", decimal.NewFromInt(100))
	require.False(t, result.Valid)
	require.Equal(t, "This promo code has reached its usage limit", result.Error)
}

func TestStoreIncrementIssuesUpsert(t *testing.T) {
	db := &fakeDB{}
	store := &Store{DB: db}

	require.NoError(t, store.Increment(context.Background(), "SAVE10"))
	require.Equal(t, []string{"SAVE10"}, db.execs)
}

func TestStoreRegistryWithoutDB(t *testing.T) {
	store := &Store{}
	registry, err := store.Registry(context.Background())
	require.NoError(t, err)
	require.Len(t, registry, 3)
}

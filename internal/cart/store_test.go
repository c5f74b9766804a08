package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Store{Client: client, TTL: time.Hour}, mr
}

func TestStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cart.ID)
	require.Empty(t, cart.Items)

	loaded, err := store.Get(ctx, cart.ID)
	require.NoError(t, err)
	require.Equal(t, cart.ID, loaded.ID)
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreAddItemMergesLines(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)

	cart, err = store.AddItem(ctx, cart.ID, "p-1", 2)
	require.NoError(t, err)
	cart, err = store.AddItem(ctx, cart.ID, "p-1", 3)
	require.NoError(t, err)
	cart, err = store.AddItem(ctx, cart.ID, "p-2", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	require.Equal(t, 5, cart.Items[0].Qty)
	require.Equal(t, "p-2", cart.Items[1].ProductID)
}

func TestStoreUpdateQty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, cart.ID, "p-1", 2)
	require.NoError(t, err)

	cart, err = store.UpdateQty(ctx, cart.ID, "p-1", 7)
	require.NoError(t, err)
	require.Equal(t, 7, cart.Items[0].Qty)

	cart, err = store.UpdateQty(ctx, cart.ID, "p-1", 0)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	_, err = store.UpdateQty(ctx, cart.ID, "p-1", 1)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestStorePromoRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)

	cart, err = store.SetPromo(ctx, cart.ID, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, "SAVE10", cart.PromoCode)

	cart, err = store.ClearPromo(ctx, cart.ID)
	require.NoError(t, err)
	require.Empty(t, cart.PromoCode)
}

func TestStoreWriteRefreshesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	_, err = store.AddItem(ctx, cart.ID, "p-1", 1)
	require.NoError(t, err)

	mr.FastForward(45 * time.Minute)
	_, err = store.Get(ctx, cart.ID)
	require.NoError(t, err, "write should have reset the TTL")
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	cart, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, cart.ID))

	_, err = store.Get(ctx, cart.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

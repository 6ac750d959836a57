package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, time.Hour), mr
}

func TestStore_BeginReservesNewKey(t *testing.T) {
	store, mr := newTestStore(t)

	recorded, done, err := store.Begin(context.Background(), "2:abc")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, recorded)

	value, err := mr.Get("deposit:2:abc")
	require.NoError(t, err)
	assert.Equal(t, "pending", value)
	assert.Equal(t, time.Hour, mr.TTL("deposit:2:abc"))
}

func TestStore_BeginWhileInFlight(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)

	_, _, err = store.Begin(ctx, "2:abc")
	require.ErrorIs(t, err, ErrInFlight)
}

func TestStore_CompletedKeyReturnsRecordedValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "2:abc", "243.11"))

	recorded, done, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "243.11", recorded)
}

func TestStore_ReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "2:abc"))

	_, done, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStore_KeysExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "2:abc", "243.11"))

	mr.FastForward(2 * time.Hour)

	_, done, err := store.Begin(ctx, "2:abc")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestConnect_FailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), addr, 0)
	require.Error(t, err)
}

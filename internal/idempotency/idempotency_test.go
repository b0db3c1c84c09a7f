package idempotency_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/Santi4567/Akima-sub001/internal/testutil"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := testutil.NewRedis(t)

	rdb, err := idempotency.Connect(context.Background(), "redis://"+addr)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return rdb
}

func newStore(t *testing.T) *idempotency.RedisStore {
	t.Helper()
	return idempotency.NewRedisStore(newClient(t), time.Minute, 10*time.Second)
}

func TestBeginSaveReplay(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	resp, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = store.Begin(ctx, "k1")
	assert.ErrorIs(t, err, idempotency.ErrInProgress)

	saved := idempotency.Response{Status: 201, Body: json.RawMessage(`{"success":true}`)}
	require.NoError(t, store.Save(ctx, "k1", saved))

	resp, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"success":true}`, string(resp.Body))
}

func TestReleaseFreesKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k2"))

	resp, err := store.Begin(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := idempotency.Connect(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestPendingClaimExpiresBeforeSavedResponse(t *testing.T) {
	rdb := newClient(t)
	store := idempotency.NewRedisStore(rdb, time.Hour, 30*time.Second)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k3")
	require.NoError(t, err)

	ttl, err := rdb.TTL(ctx, "idempotency:k3").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 30*time.Second)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Save(ctx, "k3", idempotency.Response{Status: 201, Body: json.RawMessage(`{}`)}))

	ttl, err = rdb.TTL(ctx, "idempotency:k3").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Minute)
}

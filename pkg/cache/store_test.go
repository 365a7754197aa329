package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResponse(body string) *CachedResponse {
	return &CachedResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(body),
	}
}

func TestManagerStore(t *testing.T) {
	m, clock, _ := newTestManager(DefaultConfig())
	store := NewManagerStore(m)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "GET:/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "GET:/a", sampleResponse(`{"a":1}`), time.Second))
	resp, ok, err := store.Get(ctx, "GET:/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(resp.Body))

	clock.Advance(2 * time.Second)
	_, ok, _ = store.Get(ctx, "GET:/a")
	assert.False(t, ok)

	m.Set("GET:/wrong-type", "not a response")
	_, ok, err = store.Get(ctx, "GET:/wrong-type")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, m.Has("GET:/wrong-type"))

	require.NoError(t, store.Set(ctx, "GET:/exercises", sampleResponse("[]"), 0))
	n, err := store.Invalidate(ctx, "exercises")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Set(ctx, "GET:/b", sampleResponse("b"), 0))
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, m.Stats().Size)
	assert.Same(t, m, store.Manager())
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr, client
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr, _ := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "GET:/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "GET:/a", sampleResponse(`{"a":1}`), time.Minute))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"GET:/a"))
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisPrefix+"GET:/a"))

	resp, ok, err := store.Get(ctx, "GET:/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(resp.Body))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "GET:/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_CorruptEntryIsDeleted(t *testing.T) {
	store, mr, _ := newRedisStore(t)
	require.NoError(t, mr.Set(DefaultRedisPrefix+"GET:/bad", "{not json"))

	_, ok, err := store.Get(context.Background(), "GET:/bad")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(DefaultRedisPrefix+"GET:/bad"))
}

func TestRedisStore_InvalidateAndClear(t *testing.T) {
	store, mr, client := newRedisStore(t)
	ctx := context.Background()

	for _, key := range []string{"GET:/api/v1/exercises", "GET:/api/v1/exercises/ex-1", "GET:/api/v1/usage"} {
		require.NoError(t, store.Set(ctx, key, sampleResponse(key), time.Minute))
	}
	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0).Err())

	n, err := store.Invalidate(ctx, "exercises")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists(DefaultRedisPrefix+"GET:/api/v1/usage"))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists(DefaultRedisPrefix+"GET:/api/v1/usage"))
	assert.True(t, mr.Exists("unrelated"), "keys outside the prefix survive")
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr, _ := newRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "GET:/a")
	assert.ErrorContains(t, err, "redis get failed")

	err = store.Set(context.Background(), "GET:/a", sampleResponse("x"), time.Minute)
	assert.ErrorContains(t, err, "redis set failed")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `GET:/a\?b=\*`, escapeGlob("GET:/a?b=*"))
	assert.Equal(t, `\[x\]`, escapeGlob("[x]"))
}

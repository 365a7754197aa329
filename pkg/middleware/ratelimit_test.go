package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechkit/practicehub/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(config, clock)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		d, err := limiter.Allow(ctx, "test-user")
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, config.RequestsPerWindow+config.BurstSize, allowed)

	clock.Advance(time.Second)
	d, err := limiter.Allow(ctx, "test-user")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "tokens should refill after a window")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, clockwork.NewFakeClock())
	ctx := context.Background()

	d, _ := limiter.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "a")
	assert.False(t, d.Allowed)

	d, _ = limiter.Allow(ctx, "b")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Second}, clock)
	ctx := context.Background()

	limiter.Allow(ctx, "stale")
	clock.Advance(3 * time.Second)
	limiter.Allow(ctx, "fresh")

	assert.Equal(t, 1, limiter.Cleanup())
	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "fresh")
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisRateLimiter_FixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "rl")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "user:u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	assert.Equal(t, time.Minute, mr.TTL("rl:user:u1"))

	mr.FastForward(time.Minute)
	d, err = limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	limiter := NewRedisRateLimiter(client, nil, "")
	mr.Close()

	d, err := limiter.Allow(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("backend down")
}

type keyRecorder struct {
	keys []string
}

func (k *keyRecorder) Allow(_ context.Context, key string) (Decision, error) {
	k.keys = append(k.keys, key)
	return Decision{Allowed: true, Limit: 10, Remaining: 9, Reset: time.Now().Add(time.Minute)}, nil
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, clockwork.NewFakeClock())
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
		req = req.WithContext(observability.WithUserID(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if i == 0 {
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		}
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "rate limit exceeded")
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_Keys(t *testing.T) {
	rec := &keyRecorder{}
	handler := RateLimit(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(observability.WithUserID(req.Context(), "user-9"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"ip:10.0.0.1", "ip:203.0.113.7", "user:user-9"}, rec.keys)
}

func TestRateLimit_FailOpen(t *testing.T) {
	called := false
	handler := RateLimit(erroringLimiter{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "192.0.2.1:1", "198.51.100.2"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.2"}, "192.0.2.1:1", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

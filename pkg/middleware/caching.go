package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/speechkit/practicehub/pkg/cache"
	"github.com/speechkit/practicehub/pkg/observability"
)

// CacheOptions configures WithCaching.
type CacheOptions struct {
	// TTL of stored responses; also drives the Cache-Control header.
	TTL time.Duration
	// KeyFunc derives the cache key. Defaults to DefaultCacheKey.
	KeyFunc func(*http.Request) string
	// Skip bypasses the cache entirely. Defaults to skipping anything but GET and HEAD.
	Skip func(*http.Request) bool
}

// DefaultCacheKey keys responses by method and full URL.
func DefaultCacheKey(r *http.Request) string {
	return r.Method + ":" + r.URL.String()
}

func skipUnsafeMethods(r *http.Request) bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

// WithCaching serves responses from store when possible. Hits carry
// "X-Cache: HIT"; misses run the handler, carry "X-Cache: MISS" and are stored
// when the status is 2xx. Store failures are logged and the request is served uncached.
func WithCaching(store cache.ResponseStore, opts CacheOptions) func(http.Handler) http.Handler {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = DefaultCacheKey
	}
	if opts.Skip == nil {
		opts.Skip = skipUnsafeMethods
	}

	seconds := int(opts.TTL.Seconds())
	cacheControl := fmt.Sprintf("public, max-age=%d, s-maxage=%d, stale-while-revalidate=%d",
		seconds, seconds, 2*seconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := opts.KeyFunc(r)
			logger := observability.FromContext(ctx).WithField("cache_key", key)

			cached, ok, err := store.Get(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("response cache lookup failed")
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				writeCached(w, cached, "HIT")
				return
			}

			rec := newResponseRecorder()
			next.ServeHTTP(rec, r)

			resp := &cache.CachedResponse{
				Status: rec.status,
				Header: rec.header.Clone(),
				Body:   rec.body.Bytes(),
			}
			if resp.Status >= 200 && resp.Status < 300 {
				resp.Header.Set("Cache-Control", cacheControl)
				if err := store.Set(ctx, key, resp, opts.TTL); err != nil {
					logger.WithError(err).Warn("failed to store cached response")
				}
			}

			writeCached(w, resp, "MISS")
		})
	}
}

func writeCached(w http.ResponseWriter, resp *cache.CachedResponse, state string) {
	header := w.Header()
	for k, v := range resp.Header {
		header[k] = append([]string(nil), v...)
	}
	header.Set("X-Cache", state)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// responseRecorder buffers a handler's response so it can be stored.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header), status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

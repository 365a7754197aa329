package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/speechkit/practicehub/pkg/cache"
	"github.com/speechkit/practicehub/pkg/httputil"
	"github.com/speechkit/practicehub/pkg/observability"
)

// CacheHandlers exposes cache diagnostics and invalidation.
type CacheHandlers struct {
	responses cache.ResponseStore
	queries   *cache.QueryCache
}

// NewCacheHandlers creates a new CacheHandlers
func NewCacheHandlers(responses cache.ResponseStore, queries *cache.QueryCache) *CacheHandlers {
	return &CacheHandlers{responses: responses, queries: queries}
}

// RegisterRoutes registers cache routes
func (h *CacheHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/cache/stats", h.Stats).Methods(http.MethodGet)
	router.HandleFunc("/cache", h.Clear).Methods(http.MethodDelete)
}

// CacheStatsResponse describes the caches held by this instance.
type CacheStatsResponse struct {
	// Responses is nil when responses are cached outside the process.
	Responses    *cache.Stats `json:"responses,omitempty"`
	QueryEntries int          `json:"queryEntries"`
}

// Stats reports the process-local cache state.
func (h *CacheHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	resp := CacheStatsResponse{QueryEntries: h.queries.Len()}
	if ms, ok := h.responses.(*cache.ManagerStore); ok {
		stats := ms.Manager().Stats()
		resp.Responses = &stats
	}
	httputil.WriteSuccess(w, resp)
}

// ClearResponse reports what a clear removed.
type ClearResponse struct {
	Pattern   string `json:"pattern,omitempty"`
	Responses int    `json:"responses"`
	Queries   int    `json:"queries"`
}

// Clear empties every cache, or only keys containing ?pattern=.
func (h *CacheHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pattern := httputil.ParseQueryString(r, "pattern", "")
	resp := ClearResponse{Pattern: pattern}

	inv, ok := h.responses.(cache.Invalidator)
	if pattern == "" {
		if ms, local := h.responses.(*cache.ManagerStore); local {
			resp.Responses = ms.Manager().Stats().Size
		}
		resp.Queries = h.queries.Len()
		h.queries.Clear()
		if ok {
			if err := inv.Clear(ctx); err != nil {
				observability.FromContext(ctx).WithError(err).Error("failed to clear response cache")
				httputil.WriteInternalError(w, err)
				return
			}
		}
		httputil.WriteSuccess(w, resp)
		return
	}

	resp.Queries = h.queries.Invalidate(pattern)
	if ok {
		n, err := inv.Invalidate(ctx, pattern)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Error("failed to invalidate response cache")
			httputil.WriteInternalError(w, err)
			return
		}
		resp.Responses = n
	}
	observability.FromContext(ctx).WithField("pattern", pattern).Info("invalidated cache entries")
	httputil.WriteSuccess(w, resp)
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/speechkit/practicehub/pkg/cache"
	"github.com/speechkit/practicehub/pkg/exercises"
	"github.com/speechkit/practicehub/pkg/httputil"
	"github.com/speechkit/practicehub/pkg/observability"
	"github.com/speechkit/practicehub/pkg/usage"
)

// UsageHandlers serves quota reads and records downloads.
type UsageHandlers struct {
	tracker  *usage.Tracker
	catalog  exercises.Catalog
	queries  *cache.QueryCache
	usageTTL time.Duration
}

// NewUsageHandlers creates a new UsageHandlers
func NewUsageHandlers(tracker *usage.Tracker, catalog exercises.Catalog, queries *cache.QueryCache, usageTTL time.Duration) *UsageHandlers {
	return &UsageHandlers{
		tracker:  tracker,
		catalog:  catalog,
		queries:  queries,
		usageTTL: usageTTL,
	}
}

// RegisterRoutes registers usage routes
func (h *UsageHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/usage", h.GetUsage).Methods(http.MethodGet)
	router.HandleFunc("/usage/stats", h.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/usage/reset", h.Reset).Methods(http.MethodPost)
	router.HandleFunc("/exercises/{exerciseID}/download", h.Download).Methods(http.MethodPost)
}

func usageKey(userID string) string {
	return "usage:" + userID + ":"
}

func (h *UsageHandlers) invalidate(userID string) {
	h.queries.Invalidate(usageKey(userID))
}

// GetUsage returns the caller's quota for the current month.
func (h *UsageHandlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := observability.GetUserID(ctx)

	data, err := cache.Fetch(ctx, h.queries, usageKey(userID)+"summary", h.usageTTL,
		func(ctx context.Context) (*usage.UsageData, error) {
			return h.tracker.GetUserUsage(ctx, userID)
		})
	if err != nil {
		writeUsageError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, data)
}

// GetStats returns the caller's download history summary.
func (h *UsageHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := observability.GetUserID(ctx)

	stats, err := cache.Fetch(ctx, h.queries, usageKey(userID)+"stats", h.usageTTL,
		func(ctx context.Context) (*usage.UsageStats, error) {
			return h.tracker.GetUsageStats(ctx, userID)
		})
	if err != nil {
		writeUsageError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

// Reset purges the caller's download history from before the current month.
func (h *UsageHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := observability.GetUserID(ctx)

	result, err := h.tracker.ResetUsage(ctx, userID)
	if err != nil {
		writeUsageError(w, r, err)
		return
	}

	if !result.Success {
		httputil.WriteJSON(w, http.StatusBadRequest, result)
		return
	}

	h.invalidate(userID)
	httputil.WriteSuccess(w, result)
}

// Download records a download of the exercise for the caller.
func (h *UsageHandlers) Download(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := httputil.ParsePathStringOrError(w, r, "exerciseID")
	if !ok {
		return
	}

	ctx := r.Context()
	userID := observability.GetUserID(ctx)

	if _, err := h.catalog.Get(ctx, exerciseID); err != nil {
		if errors.Is(err, exercises.ErrExerciseNotFound) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		observability.FromContext(ctx).WithError(err).Error("failed to load exercise")
		httputil.WriteInternalError(w, errors.New("failed to load exercise"))
		return
	}

	result, err := h.tracker.RecordDownload(ctx, userID, exerciseID)
	if err != nil {
		writeUsageError(w, r, err)
		return
	}

	switch {
	case result.Success:
		h.invalidate(userID)
		httputil.WriteSuccess(w, result)
	case result.Error == usage.DownloadLimitReached:
		httputil.WriteJSON(w, http.StatusForbidden, result)
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, result)
	}
}

func writeUsageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, usage.ErrUserNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	observability.FromContext(r.Context()).WithError(err).Error("usage request failed")
	httputil.WriteInternalError(w, errors.New("internal server error"))
}

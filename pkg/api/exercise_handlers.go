package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/speechkit/practicehub/pkg/exercises"
	"github.com/speechkit/practicehub/pkg/httputil"
	"github.com/speechkit/practicehub/pkg/observability"
)

// ExerciseHandlers serves the exercise catalog.
type ExerciseHandlers struct {
	catalog exercises.Catalog
}

// NewExerciseHandlers creates a new ExerciseHandlers
func NewExerciseHandlers(catalog exercises.Catalog) *ExerciseHandlers {
	return &ExerciseHandlers{catalog: catalog}
}

// RegisterRoutes registers catalog routes wrapped in the response cache.
func (h *ExerciseHandlers) RegisterRoutes(router *mux.Router, responseCache func(http.Handler) http.Handler) {
	router.Handle("/exercises", responseCache(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	router.Handle("/exercises/{exerciseID}", responseCache(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
}

// List returns the catalog, optionally filtered by ?category=.
func (h *ExerciseHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to list exercises")
		httputil.WriteInternalError(w, errors.New("failed to list exercises"))
		return
	}

	category := httputil.ParseQueryString(r, "category", "")
	httputil.WriteSuccess(w, exercises.FilterByCategory(list, category))
}

// Get returns a single exercise.
func (h *ExerciseHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "exerciseID")
	if !ok {
		return
	}

	e, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, exercises.ErrExerciseNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to get exercise")
		httputil.WriteInternalError(w, errors.New("failed to get exercise"))
		return
	}

	httputil.WriteSuccess(w, e)
}

package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exercises/ex-1/download", nil)
	req = mux.SetURLVars(req, map[string]string{"exerciseID": "ex-1"})

	val, err := ParsePathString(req, "exerciseID")
	require.NoError(t, err)
	assert.Equal(t, "ex-1", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestParsePathStringOrError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	val, ok := ParsePathStringOrError(w, req, "exerciseID")

	assert.False(t, ok)
	assert.Empty(t, val)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing path parameter: exerciseID")
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exercises?category=articulation", nil)

	assert.Equal(t, "articulation", ParseQueryString(req, "category", ""))
	assert.Equal(t, "all", ParseQueryString(req, "sort", "all"))
}

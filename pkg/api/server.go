package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/speechkit/practicehub/pkg/cache"
	"github.com/speechkit/practicehub/pkg/exercises"
	"github.com/speechkit/practicehub/pkg/httputil"
	"github.com/speechkit/practicehub/pkg/middleware"
	"github.com/speechkit/practicehub/pkg/observability"
	"github.com/speechkit/practicehub/pkg/usage"
)

// Config wires the server's dependencies. Tracker, Catalog, QueryCache and
// Responses are required.
type Config struct {
	Tracker    *usage.Tracker
	Catalog    exercises.Catalog
	QueryCache *cache.QueryCache

	// Responses backs the WithCaching middleware on catalog routes.
	Responses   cache.ResponseStore
	ResponseTTL time.Duration
	// UsageTTL bounds how stale a cached usage snapshot may be.
	UsageTTL time.Duration

	// Optional.
	Limiter      middleware.Limiter
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	ServiceName  string
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	cfg     Config
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = 5 * time.Minute
	}
	if cfg.UsageTTL <= 0 {
		cfg.UsageTTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "practicehub"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		router: mux.NewRouter(),
		cfg:    cfg,
	}
	s.setupRoutes()

	s.handler = otelhttp.NewHandler(
		httputil.Chain(
			httputil.RequestIDMiddleware,
			httputil.LoggingMiddleware(cfg.Logger),
			httputil.RecoveryMiddleware,
			httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
		)(s.router),
		cfg.ServiceName,
	)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequireUser)
	if s.cfg.Limiter != nil {
		api.Use(middleware.RateLimit(s.cfg.Limiter))
	}

	NewUsageHandlers(s.cfg.Tracker, s.cfg.Catalog, s.cfg.QueryCache, s.cfg.UsageTTL).RegisterRoutes(api)

	responseCache := middleware.WithCaching(s.cfg.Responses, middleware.CacheOptions{TTL: s.cfg.ResponseTTL})
	NewExerciseHandlers(s.cfg.Catalog).RegisterRoutes(api, responseCache)

	NewCacheHandlers(s.cfg.Responses, s.cfg.QueryCache).RegisterRoutes(api)
}

// Router returns the bare router without the outer middleware chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

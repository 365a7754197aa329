package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/speechkit/practicehub/pkg/api"
	"github.com/speechkit/practicehub/pkg/async"
	"github.com/speechkit/practicehub/pkg/cache"
	"github.com/speechkit/practicehub/pkg/config"
	"github.com/speechkit/practicehub/pkg/exercises"
	"github.com/speechkit/practicehub/pkg/middleware"
	"github.com/speechkit/practicehub/pkg/observability"
	"github.com/speechkit/practicehub/pkg/storage"
	"github.com/speechkit/practicehub/pkg/usage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("practicehub exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := observability.WithLogger(context.Background(), logger)

	// Settings that can still fail are resolved before anything is opened.
	loc, err := cfg.Usage.Location()
	if err != nil {
		return err
	}
	enforcement, err := usage.ParseEnforcement(cfg.Usage.Enforcement)
	if err != nil {
		return err
	}
	strategy, err := cache.ParseStrategy(cfg.Cache.Strategy)
	if err != nil {
		return err
	}
	sweepSchedule, err := cron.ParseStandard(cfg.Cache.SweepSchedule)
	if err != nil {
		return fmt.Errorf("invalid cache sweep schedule %q: %w", cfg.Cache.SweepSchedule, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	queries, err := cache.NewQueryCache(cache.QueryConfig{
		MaxEntries: cfg.Cache.QueryMaxEntries,
		DefaultTTL: cfg.Cache.QueryTTL,
	}, cache.WithObserver(metrics), cache.WithName("queries"))
	if err != nil {
		return err
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Until the shutdown manager owns them, resources opened below are released
	// here on a failed start.
	var closers []func()
	abort := func(err error) error {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return err
	}
	closers = append(closers, func() {
		_ = observability.ShutdownOTel(context.Background(), otelProviders, logger)
	})

	db, dialect, err := storage.OpenDatabase(ctx, storage.DatabaseConfig{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return abort(err)
	}
	closers = append(closers, func() { _ = db.Close() })
	logger.WithField("driver", dialect).Info("Database connected")

	if cfg.Database.Migrate {
		if err := storage.Migrate(ctx, db, dialect); err != nil {
			return abort(err)
		}
		logger.Info("Database schema up to date")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return abort(err)
		}
		logger.Info("Redis connected, sharing response cache and rate limits")
	}

	tracker := usage.NewTracker(usage.NewSQLStore(db, dialect),
		usage.WithLocation(loc),
		usage.WithEnforcement(enforcement),
		usage.WithRecorder(metrics),
		usage.WithLogger(logger),
	)

	var (
		responses cache.ResponseStore
		manager   *cache.Manager
	)
	if redisClient != nil {
		responses = cache.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
	} else {
		manager = cache.NewManager(cache.Config{
			MaxSize:  cfg.Cache.MaxSize,
			TTL:      cfg.Cache.TTL,
			Strategy: strategy,
		}, cache.WithObserver(metrics), cache.WithName("responses"))
		responses = cache.NewManagerStore(manager)
	}

	catalog := exercises.NewCachedRepository(exercises.NewRepository(db), queries, cfg.Cache.QueryTTL)

	var (
		limiter      middleware.Limiter
		localLimiter *middleware.RateLimiter
	)
	if cfg.RateLimit.Enabled {
		rlCfg := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowDuration:    cfg.RateLimit.Window,
			BurstSize:         cfg.RateLimit.Burst,
		}
		if redisClient != nil {
			limiter = middleware.NewRedisRateLimiter(redisClient, rlCfg, "practicehub:ratelimit")
		} else {
			localLimiter = middleware.NewRateLimiter(rlCfg, nil)
			limiter = localLimiter
		}
	}

	server := api.NewServer(api.Config{
		Tracker:     tracker,
		Catalog:     catalog,
		QueryCache:  queries,
		Responses:   responses,
		ResponseTTL: cfg.Cache.TTL,
		UsageTTL:    cfg.Usage.SnapshotTTL,
		Limiter:     limiter,
		Metrics:     metrics,
		Logger:      logger,
		ServiceName: cfg.Observability.OTelServiceName,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient).
		WithVersion(cfg.Observability.OTelServiceVersion))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := cron.New()
	scheduler.Schedule(sweepSchedule, cron.FuncJob(func() {
		async.SafeGoNoError(ctx, 30*time.Second, "cache sweep", func(context.Context) {
			sweep(db, manager, localLimiter, metrics, logger)
		})
	}))
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.Register("cron", func(context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	// A listener failure cancels waitCtx with the error as its cause.
	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	for _, srv := range []*http.Server{apiServer, healthServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cancel(fmt.Errorf("server on %s failed: %w", srv.Addr, err))
			}
		}(srv)
	}

	if err := shutdown.WaitForSignal(waitCtx); err != nil {
		return err
	}
	return context.Cause(waitCtx)
}

// sweep drops expired cache entries and idle rate-limit buckets and refreshes
// connection pool gauges.
func sweep(db *sql.DB, manager *cache.Manager, limiter *middleware.RateLimiter, metrics *observability.Metrics, logger *observability.Logger) {
	fields := map[string]interface{}{}
	if manager != nil {
		fields["expired_entries"] = manager.SweepExpired()
	}
	if limiter != nil {
		fields["idle_buckets"] = limiter.Cleanup()
	}
	metrics.ObserveDBStats(db.Stats())
	logger.WithFields(fields).Debug("cache sweep complete")
}

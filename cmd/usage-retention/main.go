package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/speechkit/practicehub/pkg/config"
	"github.com/speechkit/practicehub/pkg/observability"
	"github.com/speechkit/practicehub/pkg/storage"
	"github.com/speechkit/practicehub/pkg/usage"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule overriding PRACTICEHUB_RETENTION_SCHEDULE (default: 00:15 on the 1st)")
	runOnce  = flag.Bool("run-once", false, "Run one retention pass and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Retention.Schedule = *schedule
	}

	logger := observability.NewTextLogger(cfg.Observability.Level(), os.Stdout).
		WithField("job", "usage-retention")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("usage retention failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := observability.WithLogger(context.Background(), logger)

	db, dialect, err := storage.OpenDatabase(ctx, storage.DatabaseConfig{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Retention.Workers + 1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := cfg.Usage.Location()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tracker := usage.NewTracker(usage.NewSQLStore(db, dialect),
		usage.WithLocation(loc),
		usage.WithRecorder(metrics),
		usage.WithLogger(logger),
	)
	job := usage.NewRetentionJob(tracker, cfg.Retention.Workers, cfg.Retention.Timeout, logger)

	if *runOnce {
		return runPass(ctx, job, logger)
	}

	// Month boundaries follow the usage time zone, so the schedule does too.
	scheduler := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger.Entry()))),
	)
	if _, err := scheduler.AddFunc(cfg.Retention.Schedule, func() {
		if err := runPass(ctx, job, logger); err != nil {
			logger.WithError(err).Error("Retention pass finished with errors")
		}
	}); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", cfg.Retention.Schedule, err)
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, nil))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, healthServer)
	shutdown.Register("cron", func(context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("health server failed: %w", err))
		}
	}()

	scheduler.Start()
	logger.WithFields(map[string]interface{}{
		"schedule": cfg.Retention.Schedule,
		"timezone": loc.String(),
		"workers":  cfg.Retention.Workers,
	}).Info("Usage retention scheduler started")

	if err := shutdown.WaitForSignal(waitCtx); err != nil {
		return err
	}
	return context.Cause(waitCtx)
}

func runPass(ctx context.Context, job *usage.RetentionJob, logger *observability.Logger) error {
	logger.Info("Starting retention pass")
	_, err := job.Run(ctx)
	return err
}

// Package observability provides structured logging, Prometheus metrics, health
// probes and OpenTelemetry tracing for practicehub services.
//
// # Structured Logging
//
// Logging is backed by logrus. The API server logs JSON, command line jobs log text:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", userID).Info("download recorded")
//
// Request scoped loggers carry the request and user ids:
//
//	observability.FromContext(r.Context()).WithError(err).Error("usage lookup failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DownloadsRecordedTotal.WithLabelValues("free").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/health/ready", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability

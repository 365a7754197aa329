package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntries        *prometheus.GaugeVec

	// Usage metrics
	DownloadsRecordedTotal *prometheus.CounterVec
	DownloadsRejectedTotal *prometheus.CounterVec
	UsageResetsTotal       *prometheus.CounterVec
	RetentionDeletedTotal  prometheus.Counter
	UsageStoreErrorsTotal  *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitCount        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "practicehub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "practicehub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "practicehub_cache_entries",
				Help: "Current number of cache entries",
			},
			[]string{"cache"},
		),

		DownloadsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_downloads_recorded_total",
				Help: "Total number of exercise downloads recorded",
			},
			[]string{"tier"},
		),
		DownloadsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_downloads_rejected_total",
				Help: "Total number of downloads rejected by the monthly quota",
			},
			[]string{"tier"},
		),
		UsageResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_usage_resets_total",
				Help: "Total number of usage reset requests",
			},
			[]string{"outcome"},
		),
		RetentionDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "practicehub_retention_deleted_events_total",
				Help: "Download events purged by retention cleanup",
			},
		),
		UsageStoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_usage_store_errors_total",
				Help: "Total number of usage store errors",
			},
			[]string{"operation"},
		),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "practicehub_db_connections_open",
			Help: "Number of established database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "practicehub_db_connections_in_use",
			Help: "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "practicehub_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "practicehub_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.DownloadsRecordedTotal,
		m.DownloadsRejectedTotal,
		m.UsageResetsTotal,
		m.RetentionDeletedTotal,
		m.UsageStoreErrorsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitCount,
	)

	return m
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// CacheEvicted implements cache.Observer.
func (m *Metrics) CacheEvicted(cache string, n int) {
	m.CacheEvictionsTotal.WithLabelValues(cache).Add(float64(n))
}

// CacheSize implements cache.Observer.
func (m *Metrics) CacheSize(cache string, n int) {
	m.CacheEntries.WithLabelValues(cache).Set(float64(n))
}

// DownloadRecorded implements usage.Recorder.
func (m *Metrics) DownloadRecorded(tier string) {
	m.DownloadsRecordedTotal.WithLabelValues(tier).Inc()
}

// DownloadRejected implements usage.Recorder.
func (m *Metrics) DownloadRejected(tier string) {
	m.DownloadsRejectedTotal.WithLabelValues(tier).Inc()
}

// UsageReset implements usage.Recorder.
func (m *Metrics) UsageReset(outcome string) {
	m.UsageResetsTotal.WithLabelValues(outcome).Inc()
}

// EventsPurged implements usage.Recorder.
func (m *Metrics) EventsPurged(n int64) {
	m.RetentionDeletedTotal.Add(float64(n))
}

// StoreError implements usage.Recorder.
func (m *Metrics) StoreError(operation string) {
	m.UsageStoreErrorsTotal.WithLabelValues(operation).Inc()
}

// ObserveDBStats copies connection pool statistics into the gauges.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so ids do not explode cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

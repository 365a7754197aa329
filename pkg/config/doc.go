// Package config loads application configuration from defaults, an optional YAML
// file and environment variables.
//
// Precedence, lowest first: built-in defaults, the file named by
// PRACTICEHUB_CONFIG_FILE, then PRACTICEHUB_* environment variables.
//
// Server settings:
//
//	PRACTICEHUB_PORT="8080"
//	PRACTICEHUB_HEALTH_PORT="9090"
//	PRACTICEHUB_READ_TIMEOUT="15s"
//
// Database settings:
//
//	PRACTICEHUB_DB_DRIVER="postgres"  # postgres, sqlite3
//	PRACTICEHUB_DB_URL="postgres://localhost/practicehub"
//	PRACTICEHUB_DB_MIGRATE="true"
//
// Cache settings:
//
//	PRACTICEHUB_CACHE_MAX_SIZE="100"
//	PRACTICEHUB_CACHE_TTL="5m"
//	PRACTICEHUB_CACHE_STRATEGY="lru"  # lru, fifo, ttl
//	PRACTICEHUB_REDIS_URL="redis://localhost:6379/0"
//
// Usage settings:
//
//	PRACTICEHUB_USAGE_ENFORCEMENT="strict"  # strict, best_effort
//	PRACTICEHUB_USAGE_TIMEZONE="UTC"
//
// Observability settings:
//
//	PRACTICEHUB_LOG_LEVEL="info"
//	PRACTICEHUB_OTEL_ENABLED="true"
//	PRACTICEHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	database:
//	  driver: sqlite3
//	  url: "file:practicehub.db?_txlock=immediate"
//	cache:
//	  ttl: 2m
package config

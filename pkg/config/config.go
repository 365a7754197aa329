package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/speechkit/practicehub/pkg/observability"
)

const envPrefix = "PRACTICEHUB_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Cache         CacheConfig         `yaml:"cache"`
	Usage         UsageConfig         `yaml:"usage"`
	Retention     RetentionConfig     `yaml:"retention"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig selects the SQL driver and pool settings.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres or sqlite3
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// Migrate creates missing tables on startup.
	Migrate bool `yaml:"migrate"`
}

// RedisConfig is optional; an empty URL keeps response caching in-process.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig configures the response cache manager and the query cache.
type CacheConfig struct {
	MaxSize         int           `yaml:"max_size"`
	TTL             time.Duration `yaml:"ttl"`
	Strategy        string        `yaml:"strategy"` // lru, fifo or ttl
	QueryMaxEntries int           `yaml:"query_max_entries"`
	QueryTTL        time.Duration `yaml:"query_ttl"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
}

// UsageConfig configures quota enforcement.
type UsageConfig struct {
	Enforcement string `yaml:"enforcement"` // strict or best_effort
	Timezone    string `yaml:"timezone"`
	// SnapshotTTL bounds how long API responses reuse a computed usage snapshot.
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// RetentionConfig configures the usage-retention job.
type RetentionConfig struct {
	Schedule string        `yaml:"schedule"`
	Workers  int           `yaml:"workers"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig configures per-user API rate limiting. The limiter is shared
// through Redis when Redis is configured and held in-process otherwise.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Burst             int           `yaml:"burst"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Location returns the time zone month boundaries are computed in.
func (u UsageConfig) Location() (*time.Location, error) {
	if u.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(u.Timezone)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			URL:             "postgres://localhost:5432/practicehub?sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "practicehub:response:",
		},
		Cache: CacheConfig{
			MaxSize:         100,
			TTL:             5 * time.Minute,
			Strategy:        "lru",
			QueryMaxEntries: 1000,
			QueryTTL:        5 * time.Minute,
			SweepSchedule:   "@every 1m",
		},
		Usage: UsageConfig{
			Enforcement: "strict",
			Timezone:    "UTC",
			SnapshotTTL: 30 * time.Second,
		},
		Retention: RetentionConfig{
			Schedule: "15 0 1 * *",
			Workers:  4,
			Timeout:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 120,
			Window:            time.Minute,
			Burst:             20,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "practicehub",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named
// by PRACTICEHUB_CONFIG_FILE and environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose environment variable is set; the current value is the default.
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HOST", s.Host)
	s.Port = getEnv("PORT", s.Port)
	s.ReadTimeout = getEnvDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.URL = getEnv("DB_URL", d.URL)
	d.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.Migrate = getEnvBool("DB_MIGRATE", d.Migrate)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	ca := &c.Cache
	ca.MaxSize = getEnvInt("CACHE_MAX_SIZE", ca.MaxSize)
	ca.TTL = getEnvDuration("CACHE_TTL", ca.TTL)
	ca.Strategy = strings.ToLower(getEnv("CACHE_STRATEGY", ca.Strategy))
	ca.QueryMaxEntries = getEnvInt("QUERY_CACHE_MAX_ENTRIES", ca.QueryMaxEntries)
	ca.QueryTTL = getEnvDuration("QUERY_CACHE_TTL", ca.QueryTTL)
	ca.SweepSchedule = getEnv("CACHE_SWEEP_SCHEDULE", ca.SweepSchedule)

	c.Usage.Enforcement = strings.ToLower(getEnv("USAGE_ENFORCEMENT", c.Usage.Enforcement))
	c.Usage.Timezone = getEnv("USAGE_TIMEZONE", c.Usage.Timezone)
	c.Usage.SnapshotTTL = getEnvDuration("USAGE_SNAPSHOT_TTL", c.Usage.SnapshotTTL)

	c.Retention.Schedule = getEnv("RETENTION_SCHEDULE", c.Retention.Schedule)
	c.Retention.Workers = getEnvInt("RETENTION_WORKERS", c.Retention.Workers)
	c.Retention.Timeout = getEnvDuration("RETENTION_TIMEOUT", c.Retention.Timeout)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerWindow = getEnvInt("RATE_LIMIT_REQUESTS", rl.RequestsPerWindow)
	rl.Window = getEnvDuration("RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("RATE_LIMIT_BURST", rl.Burst)

	o := &c.Observability
	o.LogLevel = getEnv("LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max size must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	switch c.Cache.Strategy {
	case "lru", "fifo", "ttl":
	default:
		return fmt.Errorf("invalid cache strategy: %s (must be lru, fifo, or ttl)", c.Cache.Strategy)
	}
	if c.Cache.QueryMaxEntries <= 0 {
		return fmt.Errorf("query cache max entries must be positive")
	}

	switch c.Usage.Enforcement {
	case "strict", "best_effort":
	default:
		return fmt.Errorf("invalid usage enforcement: %s (must be strict or best_effort)", c.Usage.Enforcement)
	}
	if _, err := c.Usage.Location(); err != nil {
		return fmt.Errorf("invalid usage timezone %q: %w", c.Usage.Timezone, err)
	}

	if c.Retention.Workers <= 0 {
		return fmt.Errorf("retention workers must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst must not be negative")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

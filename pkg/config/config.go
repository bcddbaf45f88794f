package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/storage"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Pricing catalog
	Pricing PricingConfig

	// Expiry reminders
	Reminders RemindersConfig

	// Write rate limiting
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	CORSOrigins  []string
	MaxBodyBytes int64
}

// PricingConfig locates the plan catalog. Without a path the built-in
// catalog is used.
type PricingConfig struct {
	CatalogPath string
	Watch       bool
}

// RemindersConfig controls the expiry reminder scan
type RemindersConfig struct {
	Enabled     bool
	Schedule    string
	WarningDays []int
}

// RateLimitConfig limits write requests per operator
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Pricing:       loadPricingConfig(),
		Reminders:     loadRemindersConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BASEKEEPER_HOST", "0.0.0.0"),
		Port:            getEnv("BASEKEEPER_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BASEKEEPER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BASEKEEPER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BASEKEEPER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BASEKEEPER_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("BASEKEEPER_HEALTH_PORT", "9090"),
		CORSOrigins:     getEnvList("BASEKEEPER_CORS_ORIGINS", nil),
		MaxBodyBytes:    getEnvInt64("BASEKEEPER_MAX_BODY_BYTES", 1<<20),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Storage type
	if storageType := getEnv("BASEKEEPER_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// PostgreSQL config
	if pgURL := getEnv("BASEKEEPER_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("BASEKEEPER_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("BASEKEEPER_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("BASEKEEPER_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("BASEKEEPER_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// SQLite config
	if sqlitePath := getEnv("BASEKEEPER_SQLITE_PATH", ""); sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}

	// Redis config
	if redisURL := getEnv("BASEKEEPER_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("BASEKEEPER_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("BASEKEEPER_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("BASEKEEPER_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("BASEKEEPER_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Idempotency config
	if ttl := getEnvDuration("BASEKEEPER_IDEMPOTENCY_TTL", 0); ttl > 0 {
		cfg.IdempotencyTTL = ttl
	}
	if size := getEnvInt("BASEKEEPER_IDEMPOTENCY_CACHE_SIZE", 0); size > 0 {
		cfg.IdempotencyCacheSize = size
	}

	return cfg
}

// loadPricingConfig loads the pricing catalog location from environment
func loadPricingConfig() PricingConfig {
	return PricingConfig{
		CatalogPath: getEnv("BASEKEEPER_PRICING_CATALOG", ""),
		Watch:       getEnvBool("BASEKEEPER_PRICING_WATCH", true),
	}
}

// loadRemindersConfig loads reminder scheduling from environment
func loadRemindersConfig() RemindersConfig {
	return RemindersConfig{
		Enabled:     getEnvBool("BASEKEEPER_REMINDERS_ENABLED", true),
		Schedule:    getEnv("BASEKEEPER_REMINDERS_SCHEDULE", "0 9 * * *"),
		WarningDays: getEnvIntList("BASEKEEPER_REMINDERS_WARNING_DAYS", []int{7, 3, 1}),
	}
}

// loadRateLimitConfig loads write rate limits from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("BASEKEEPER_RATE_LIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("BASEKEEPER_RATE_LIMIT_REQUESTS", 60),
		Window:            getEnvDuration("BASEKEEPER_RATE_LIMIT_WINDOW", time.Minute),
		Burst:             getEnvInt("BASEKEEPER_RATE_LIMIT_BURST", 10),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BASEKEEPER_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BASEKEEPER_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BASEKEEPER_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BASEKEEPER_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BASEKEEPER_OTEL_SERVICE_NAME", "basekeeper"),
		OTelServiceVersion: getEnv("BASEKEEPER_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BASEKEEPER_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	case storage.TypeSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", c.Storage.Type)
	}
	if c.Storage.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency TTL must be positive")
	}
	if c.Storage.IdempotencyCacheSize <= 0 {
		return fmt.Errorf("idempotency cache size must be positive")
	}

	// Validate reminders
	if c.Reminders.Enabled {
		if _, err := cron.ParseStandard(c.Reminders.Schedule); err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", c.Reminders.Schedule, err)
		}
		if len(c.Reminders.WarningDays) == 0 {
			return fmt.Errorf("at least one reminder warning day is required")
		}
		for _, d := range c.Reminders.WarningDays {
			if d <= 0 {
				return fmt.Errorf("reminder warning days must be positive, got %d", d)
			}
		}
	}

	// Validate rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst must not be negative")
		}
	}

	// Validate OpenTelemetry config
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

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvIntList returns a comma-separated list of integers or a default.
// An unparsable entry discards the whole value.
func getEnvIntList(key string, defaultValue []int) []int {
	items := getEnvList(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

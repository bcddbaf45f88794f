// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	BASEKEEPER_HOST="0.0.0.0"
//	BASEKEEPER_PORT="8080"
//	BASEKEEPER_HEALTH_PORT="9090"
//	BASEKEEPER_READ_TIMEOUT="15s"
//	BASEKEEPER_WRITE_TIMEOUT="15s"
//	BASEKEEPER_CORS_ORIGINS="https://admin.example.org"
//	BASEKEEPER_MAX_BODY_BYTES="1048576"
//
// Storage settings:
//
//	BASEKEEPER_STORAGE_TYPE="postgres"  # memory, postgres, sqlite
//	BASEKEEPER_POSTGRES_URL="postgres://localhost/basekeeper"
//	BASEKEEPER_POSTGRES_MAX_CONNS="20"
//	BASEKEEPER_SQLITE_PATH="basekeeper.db"
//
// Idempotency settings (Redis is optional, the in-process LRU is used without it):
//
//	BASEKEEPER_REDIS_URL="redis://localhost:6379"
//	BASEKEEPER_IDEMPOTENCY_TTL="24h"
//	BASEKEEPER_IDEMPOTENCY_CACHE_SIZE="10000"
//
// Pricing and reminders:
//
//	BASEKEEPER_PRICING_CATALOG="/etc/basekeeper/catalog.yaml"
//	BASEKEEPER_PRICING_WATCH="true"
//	BASEKEEPER_REMINDERS_SCHEDULE="0 9 * * *"
//	BASEKEEPER_REMINDERS_WARNING_DAYS="7,3,1"
//
// Write rate limiting:
//
//	BASEKEEPER_RATE_LIMIT_ENABLED="true"
//	BASEKEEPER_RATE_LIMIT_REQUESTS="60"
//	BASEKEEPER_RATE_LIMIT_WINDOW="1m"
//	BASEKEEPER_RATE_LIMIT_BURST="10"
//
// Observability settings:
//
//	BASEKEEPER_LOG_LEVEL="info"  # debug, info, warn, error
//	BASEKEEPER_METRICS_ENABLED="true"
//	BASEKEEPER_OTEL_ENABLED="true"
//	BASEKEEPER_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config

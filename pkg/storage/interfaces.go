package storage

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// ErrUnknownBackend is returned when Config.Type names no backend
var ErrUnknownBackend = errors.New("unknown storage backend")

// CachedResponse is an HTTP response recorded under an idempotency key
type CachedResponse struct {
	StatusCode  int         `json:"status_code"`
	Header      http.Header `json:"header,omitempty"`
	Body        []byte      `json:"body"`
	RequestHash string      `json:"request_hash"`
	StoredAt    time.Time   `json:"stored_at"`
}

// IdempotencyStore remembers responses to requests that carried an
// Idempotency-Key header so that retries are answered without repeating
// their side effects.
type IdempotencyStore interface {
	// Get returns the response stored under key, or nil on a miss
	Get(ctx context.Context, key string) (*CachedResponse, error)
	// Put stores resp under key unless the key is already taken. It reports
	// whether resp was stored.
	Put(ctx context.Context, key string, resp *CachedResponse) (bool, error)
}

// HealthChecker reports whether a backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config for storage backend
type Config struct {
	Type string // "memory", "postgres", "sqlite"

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// SQLite config
	SQLitePath string

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Idempotency config
	IdempotencyTTL       time.Duration
	IdempotencyCacheSize int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                 TypeMemory,
		SQLitePath:           "basekeeper.db",
		PostgresMaxConns:     20,
		PostgresMinConns:     2,
		PostgresTimeout:      10 * time.Second,
		RedisDB:              0,
		RedisMaxRetries:      3,
		RedisPoolSize:        10,
		IdempotencyTTL:       24 * time.Hour,
		IdempotencyCacheSize: 10000,
	}
}

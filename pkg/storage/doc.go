// Package storage provides pluggable persistence backends for basekeeper.
//
// # Overview
//
// The billing engine depends on billing.Store, which this package's
// subpackages implement:
//
//   - memory: in-process maps guarded by per-tenant locks. Development and tests.
//   - postgres: database/sql over PostgreSQL (lib/pq) or SQLite (go-sqlite3),
//     with tenant serialization through advisory locks or immediate transactions.
//
// Both validate every record they decode or write, so a malformed row fails
// loudly instead of reaching the engine.
//
// # Idempotency
//
// IdempotencyStore records responses to POST requests that carried an
// Idempotency-Key header. memory.IdempotencyCache keeps them in a bounded
// expiring LRU; postgres.RedisIdempotencyStore shares them across replicas.
//
// # Configuration
//
//	config := storage.DefaultConfig()
//	config.Type = storage.TypePostgres
//	config.PostgresURL = "postgres://localhost/basekeeper?sslmode=disable"
//	config.RedisURL = "redis://localhost:6379"
//	config.IdempotencyTTL = 24 * time.Hour
package storage

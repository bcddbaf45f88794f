// Package middleware provides the HTTP middleware specific to the basekeeper API:
// operator and tenant context, idempotent payment creation, and rate limiting.
//
// # Middleware Components
//
// OperatorMiddleware: records the X-Operator header for logs, audit fields
// (confirmed_by) and rate limit keys.
//
// TenantMiddleware: copies the {tenant_id} route variable into the context and
// tags the request logger. Install with router.Use.
//
// IdempotencyMiddleware: replays the stored response of a POST retried with the
// same Idempotency-Key. Stores are in-memory (expirable LRU) or Redis.
//
//	router.Use(middleware.IdempotencyMiddleware(store, metrics))
//
// RateLimitMiddleware: limits write requests per operator (or client address).
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	limiter := middleware.NewDistributedRateLimiter(redisClient, config, "")
//	router.Use(middleware.RateLimitMiddleware(limiter))
//
// # Rate Limiting
//
// Default: 60 writes/min, 10 burst. The in-memory limiter is a token bucket;
// the Redis limiter uses a fixed window shared by all replicas and fails open
// when Redis is unreachable.
//
// # Related Packages
//
//   - pkg/httputil: generic request id, logging and recovery middleware
//   - pkg/storage: idempotency stores
package middleware

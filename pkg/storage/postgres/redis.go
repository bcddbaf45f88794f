package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/basekeeper/pkg/storage"
)

// RedisClient wraps the shared Redis connection
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	// Parse Redis URL or use default options
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// HealthCheck implements storage.HealthChecker
func (c *RedisClient) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx)
}

// GetClient returns the underlying Redis client for health checks
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// RedisIdempotencyStore implements storage.IdempotencyStore on Redis so that
// retries are recognized by any replica.
type RedisIdempotencyStore struct {
	client *RedisClient
	ttl    time.Duration
	prefix string
}

// NewRedisIdempotencyStore creates a store whose entries expire after ttl
func NewRedisIdempotencyStore(client *RedisClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "basekeeper:idempotency:",
	}
}

// Get returns the response stored under key, or nil on a miss
func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*storage.CachedResponse, error) {
	redisKey := s.prefix + key

	data, err := s.client.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var resp storage.CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// If unmarshal fails, delete corrupt data
		s.client.client.Del(ctx, redisKey)
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}
	return &resp, nil
}

// Put stores resp unless key is already taken
func (s *RedisIdempotencyStore) Put(ctx context.Context, key string, resp *storage.CachedResponse) (bool, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cached response: %w", err)
	}

	stored, err := s.client.client.SetNX(ctx, s.prefix+key, data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return stored, nil
}

var (
	_ storage.IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ storage.HealthChecker    = (*RedisClient)(nil)
)

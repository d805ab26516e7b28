package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sanidhya49/Invested/logger"
)

// ToolCache holds raw provider payloads for a short time so that agents
// running back to back share one fetch.
type ToolCache interface {
	Get(ctx context.Context, uid, tool string) (map[string]any, bool)
	Put(ctx context.Context, uid, tool string, payload map[string]any)
}

// NopToolCache caches nothing.
type NopToolCache struct{}

func (NopToolCache) Get(context.Context, string, string) (map[string]any, bool) { return nil, false }
func (NopToolCache) Put(context.Context, string, string, map[string]any)        {}

// RedisToolCache stores payloads as JSON strings under invested:fi:{uid}:{tool}.
type RedisToolCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisToolCache connects to redisURL (redis://host:port/db).
func NewRedisToolCache(redisURL string, ttl time.Duration) (*RedisToolCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return &RedisToolCache{client: redis.NewClient(opts), ttl: ttl, prefix: "invested:fi"}, nil
}

// Key returns the Redis key for a user's tool payload.
func (r *RedisToolCache) Key(uid, tool string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, uid, tool)
}

// Ping checks connectivity.
func (r *RedisToolCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns a cached payload. Errors are logged and treated as a miss.
func (r *RedisToolCache) Get(ctx context.Context, uid, tool string) (map[string]any, bool) {
	b, err := r.client.Get(ctx, r.Key(uid, tool)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warnf("tool cache get %s/%s: %v", uid, tool, err)
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// Put stores a payload with the configured TTL. Failures are logged only.
func (r *RedisToolCache) Put(ctx context.Context, uid, tool string, payload map[string]any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.Key(uid, tool), b, r.ttl).Err(); err != nil {
		logger.Warnf("tool cache put %s/%s: %v", uid, tool, err)
	}
}

// Close closes the Redis connection pool.
func (r *RedisToolCache) Close() error {
	return r.client.Close()
}

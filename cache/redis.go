package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teranos/strata/errors"
)

// Redis is a TTL cache backed by Redis. Values are stored as JSON under prefix+key.
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedisClient
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with PING
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", opts.Addr)
	}
	return client, nil
}

// NewRedis wraps a Redis client as a cache. ttl <= 0 uses DefaultTTL.
// A non-empty prefix is separated from keys by ':'.
func NewRedis[V any](client redis.UniversalClient, prefix string, ttl time.Duration) *Redis[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Redis[V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get returns the cached value if present
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.Wrapf(err, "failed to get cache key %s", key)
	}

	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		// Undecodable entries are treated as misses and dropped
		r.client.Del(ctx, r.prefix+key)
		return zero, false, nil
	}
	return v, true, nil
}

// Set stores value for the cache TTL
func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode cache value for %s", key)
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set cache key %s", key)
	}
	return nil
}

// Delete removes key
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete cache key %s", key)
	}
	return nil
}

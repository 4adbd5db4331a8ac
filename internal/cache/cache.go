// Package cache provides a Redis-backed JSON cache and distributed locks.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout is the timeout for verifying Redis connection.
const connectionTimeout = 5 * time.Second

// Cache is the caching and locking surface used by the services.
type Cache interface {
	// GetJSON decodes the value at key into dest. found is false on a miss.
	GetJSON(ctx context.Context, key string, dest any) (found bool, err error)
	// SetJSON stores value at key for ttl.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes keys.
	Delete(ctx context.Context, keys ...string) error
	// AcquireLock takes key for ttl. ok is false when someone else holds it.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// ReleaseLock frees key if token still owns it.
	ReleaseLock(ctx context.Context, key, token string) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// NewClient creates a new Redis client with the given configuration.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache implements Cache on a go-redis client. Keys are namespaced by prefix.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// New wraps client. prefix is prepended to every key, e.g. "content-engine:".
func New(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// GetJSON implements Cache.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry behaves like a miss and is dropped.
		_ = c.client.Del(ctx, c.key(key)).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON implements Cache.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// AcquireLock implements Cache with SET NX.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.key("lock:"+key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock implements Cache.
func (c *RedisCache) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.key("lock:" + key)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache unlock %s: %w", key, err)
	}
	return nil
}

// Ping implements Cache.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Noop is a Cache that stores nothing and grants every lock. It is used when
// Redis is not configured.
type Noop struct{}

// GetJSON always misses.
func (Noop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }

// SetJSON discards the value.
func (Noop) SetJSON(context.Context, string, any, time.Duration) error { return nil }

// Delete does nothing.
func (Noop) Delete(context.Context, ...string) error { return nil }

// AcquireLock always succeeds.
func (Noop) AcquireLock(context.Context, string, time.Duration) (string, bool, error) {
	return "noop", true, nil
}

// ReleaseLock does nothing.
func (Noop) ReleaseLock(context.Context, string, string) error { return nil }

// Ping always succeeds.
func (Noop) Ping(context.Context) error { return nil }

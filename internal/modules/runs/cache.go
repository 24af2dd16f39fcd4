package runs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/stockselect/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const cacheKeyPrefix = "stockselect:run:"

// Cache stores results of deterministic runs.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.Result, bool, error)
	Set(ctx context.Context, key string, result *domain.Result) error
}

// RedisConfig holds connection parameters for the result cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache keeps msgpack-encoded results under
// stockselect:run:{strategy}:{hash}.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: cfg.TTL}, nil
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.Result, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	var result domain.Result
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return &result, true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.Result) error {
	data, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Close closes the connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Fingerprint hashes the catalog contents in order.
func Fingerprint(catalog *domain.Catalog) (string, error) {
	data, err := msgpack.Marshal(catalog.Instruments())
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CacheKey identifies a run by strategy, resolved params, size and catalog.
func CacheKey(strategy string, params []byte, size int, fingerprint string) string {
	h := sha256.New()
	h.Write(params)
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(size)))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return cacheKeyPrefix + strategy + ":" + hex.EncodeToString(h.Sum(nil))
}

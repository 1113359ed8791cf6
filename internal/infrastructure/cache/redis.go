package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewise/backend/internal/domain"
)

// RedisConfig holds connection settings for the shared prediction cache
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisCache implements domain.CacheRepository on top of go-redis
type RedisCache struct {
	client *redis.Client
}

var _ domain.CacheRepository = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a ping
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	c := &RedisCache{client: client}
	if err := c.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

// NewRedisCacheFromURL connects using a redis:// or rediss:// URL
func NewRedisCacheFromURL(ctx context.Context, rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCache(ctx, RedisConfig{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks that Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping failed: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Get returns the stored bytes or domain.ErrCacheMiss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return data, nil
}

// Set stores value with ttl. A zero ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Delete removes key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Exists reports whether key is present
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return n > 0, nil
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache stores search responses keyed by the normalized request
type ResultCache interface {
	Get(ctx context.Context, key string) (*Response, bool)
	Set(ctx context.Context, key string, resp *Response)
	Invalidate(ctx context.Context) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Response, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *Response)        {}
func (noopCache) Invalidate(context.Context) error              { return nil }

// LRUCache is an in-process cache with per-entry expiry
type LRUCache struct {
	lru *expirable.LRU[string, *Response]
}

// NewLRUCache creates an LRU cache holding at most size responses for ttl
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 256
	}
	return &LRUCache{lru: expirable.NewLRU[string, *Response](size, nil, ttl)}
}

// Get returns a cached response
func (c *LRUCache) Get(_ context.Context, key string) (*Response, bool) {
	return c.lru.Get(key)
}

// Set caches a response
func (c *LRUCache) Set(_ context.Context, key string, resp *Response) {
	c.lru.Add(key, resp)
}

// Invalidate drops every entry
func (c *LRUCache) Invalidate(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of cached responses
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

const (
	redisKeyPrefix     = "flowindex:search"
	redisGenerationKey = redisKeyPrefix + ":generation"
)

// RedisCache shares search responses between processes. Invalidation bumps a
// generation counter that is part of every key, so stale entries are never read
// and expire on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, redisGenerationKey).Result()
	if err == redis.Nil {
		return "0", nil
	}
	return gen, err
}

func (c *RedisCache) key(ctx context.Context, key string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, gen, hex.EncodeToString(sum[:])), nil
}

// Get returns a cached response. Redis errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*Response, bool) {
	k, err := c.key(ctx, key)
	if err != nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		return nil, false
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		// corrupt entry
		c.client.Del(ctx, k)
		return nil, false
	}
	return &resp, true
}

// Set caches a response for the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, resp *Response) {
	k, err := c.key(ctx, key)
	if err != nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.client.Set(ctx, k, data, c.ttl)
}

// Invalidate makes every cached response unreachable
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, redisGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for health checks
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

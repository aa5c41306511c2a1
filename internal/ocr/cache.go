package ocr

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"time"

	"go-scan-sorter/internal/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// Cache stores recognized text by content key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryCache keeps up to max entries for at most ttl, evicting the least
// recently used first. A ttl of zero never expires entries.
type MemoryCache struct {
	lru *expirable.LRU[string, string]
}

func NewMemoryCache(max int, ttl time.Duration) *MemoryCache {
	if max <= 0 {
		max = 1024
	}
	return &MemoryCache{lru: expirable.NewLRU[string, string](max, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.lru.Add(key, value)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares results across processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, prefix: "ocr:", ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedEngine memoizes successful recognitions. Errors are never cached.
type CachedEngine struct {
	inner Engine
	cache Cache
}

func NewCachedEngine(inner Engine, cache Cache) *CachedEngine {
	return &CachedEngine{inner: inner, cache: cache}
}

func (e *CachedEngine) Name() string { return e.inner.Name() }

func (e *CachedEngine) BeginBatch() {
	if b, ok := e.inner.(BatchAware); ok {
		b.BeginBatch()
	}
}

func (e *CachedEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	key := e.inner.Name() + ":" + hex.EncodeToString(sum[:])

	if text, ok, err := e.cache.Get(ctx, key); err != nil {
		logger.WithError(err).Debug("OCR cache read failed")
	} else if ok {
		return text, nil
	}

	text, err := e.inner.Recognize(ctx, img)
	if err != nil {
		return "", err
	}
	if err := e.cache.Set(ctx, key, text); err != nil {
		logger.WithError(err).Debug("OCR cache write failed")
	}
	return text, nil
}

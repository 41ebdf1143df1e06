// Package cache holds short-lived search results.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/promptmart/internal/config"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/logger"
)

// ResultCache stores search results by request key. A miss is (nil, false).
// Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]domain.Prompt, bool)
	Set(ctx context.Context, key string, prompts []domain.Prompt)
}

// Type names the backing implementation.
type Type string

const (
	TypeRedis  Type = "redis"
	TypeMemory Type = "memory"
)

// NewWithFallback returns a Redis-backed cache when client is reachable and
// an in-process cache otherwise.
func NewWithFallback(ctx context.Context, client *redis.Client, ttl time.Duration) ResultCache {
	if client == nil {
		logger.CtxInfo(ctx, "Result cache: using in-memory store")
		return NewMemoryCache(ttl)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.CtxWarn(ctx, "Result cache: redis unavailable (%v), falling back to memory", err)
		return NewMemoryCache(ttl)
	}

	logger.CtxInfo(ctx, "Result cache: using redis at %s", client.Options().Addr)
	return NewRedisCache(client, ttl)
}

// NewFromConfig builds the cache described by cfg, or nil when disabled.
func NewFromConfig(ctx context.Context, cfg *config.CacheConfig) ResultCache {
	if !cfg.Enabled || cfg.TTL <= 0 {
		return nil
	}
	var client *redis.Client
	if cfg.Redis.Addr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return NewWithFallback(ctx, client, cfg.TTL)
}

// TypeOf reports which implementation c is.
func TypeOf(c ResultCache) Type {
	if _, ok := c.(*RedisCache); ok {
		return TypeRedis
	}
	return TypeMemory
}

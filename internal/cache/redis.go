package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/promptmart/internal/domain"
	"github.com/timmy/promptmart/internal/logger"
)

const redisKeyPrefix = "promptmart:"

// RedisCache stores JSON-encoded results with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.Prompt, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.CtxWarn(ctx, "Result cache get failed: %v", err)
		}
		return nil, false
	}
	var prompts []domain.Prompt
	if err := json.Unmarshal(raw, &prompts); err != nil {
		logger.CtxWarn(ctx, "Result cache entry corrupt, ignoring: %v", err)
		return nil, false
	}
	return prompts, true
}

func (c *RedisCache) Set(ctx context.Context, key string, prompts []domain.Prompt) {
	raw, err := json.Marshal(prompts)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		logger.CtxWarn(ctx, "Result cache set failed: %v", err)
	}
}

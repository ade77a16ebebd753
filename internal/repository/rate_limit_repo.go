package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruralhealth/screening-api/pkg/logger"
)

// RateLimiter caps repeated attempts at a keyed operation within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisRateLimiter is a fixed-window counter backed by Redis. It fails open:
// if Redis is unreachable or not configured, attempts are allowed so that
// field operations keep working when the cache is down.
type RedisRateLimiter struct{ client *redis.Client }

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	redisKey := fmt.Sprintf("ratelimit:%s", key)
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
		return true, nil
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			logger.WarnContext(ctx, "rate limiter expire failed", "key", redisKey, "error", err)
		}
	}
	return count <= int64(limit), nil
}

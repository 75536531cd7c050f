package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter interface {
	// Allow reports whether the caller identified by key is still inside
	// the fixed window budget.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type redisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) RateLimiter {
	return &redisRateLimiter{client: client}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// Hash the key so raw client addresses never land in Redis.
	hashed := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(key)))

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, hashed)
	pipe.ExpireNX(ctx, hashed, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() <= int64(limit), nil
}

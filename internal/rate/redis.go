package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = time.Second

// RedisLimiter counts requests in redis so limits hold across
// replicas. Redis errors fail open: a broken limiter must not take
// the site down with it.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (r *RedisLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	k := "ratelimit:" + key
	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return true, 0
	}
	if count == 1 {
		_ = r.rdb.Expire(ctx, k, window).Err()
	}

	retryAfter := window
	if ttl, err := r.rdb.TTL(ctx, k).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	if count > int64(limit) {
		return false, retryAfter
	}
	return true, retryAfter
}

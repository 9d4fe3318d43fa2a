package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const redisLimiterTimeout = 250 * time.Millisecond

var rateLimitBackendErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "placement_ratelimit_backend_errors_total",
	Help: "Rate limit checks let through because redis failed.",
})

// RedisLimiter counts hits in redis so every API replica shares one budget.
// Each window gets its own key, aligned to the window length, and the key
// expires shortly after the window closes. Redis failures let the hit through.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string, logger *slog.Logger) *RedisLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{client: client, prefix: prefix, logger: logger, now: time.Now}
}

func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	if l == nil || key == "" || limit <= 0 || window <= 0 {
		return true
	}
	bucket := l.bucketKey(key, window)

	ctx, cancel := context.WithTimeout(context.Background(), redisLimiterTimeout)
	defer cancel()
	var hits *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, bucket)
		pipe.PExpire(ctx, bucket, window+time.Second)
		return nil
	})
	if err != nil {
		rateLimitBackendErrors.Inc()
		l.logger.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return hits.Val() <= int64(limit)
}

func (l *RedisLimiter) bucketKey(key string, window time.Duration) string {
	size := window.Milliseconds()
	if size <= 0 {
		size = 1
	}
	slot := l.now().UnixMilli() / size
	return fmt.Sprintf("%s%s:%d", l.prefix, key, slot)
}

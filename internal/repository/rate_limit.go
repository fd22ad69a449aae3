package repository

import (
	"context"
	"errors"
	"time"

	"realtime_chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository — счетчик с фиксированным окном поверх Redis.
// Сброс окна происходит по TTL ключа, отдельной очистки нет.
type RateLimitRepository interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

// Hit увеличивает счетчик и возвращает новое значение.
// Первый инкремент в окне выставляет TTL ключу.
func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit counter", "error", err, "key", key)
		return 0, err
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			r.log.Error("Failed to set rate limit TTL", "error", err, "key", key)
		}
	}

	return count, nil
}

func (r *rateLimitRepository) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		r.log.Error("Failed to read rate limit counter", "error", err, "key", key)
		return 0, err
	}

	return count, nil
}

func (r *rateLimitRepository) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.redis.TTL(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to read rate limit TTL", "error", err, "key", key)
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}

	return ttl, nil
}

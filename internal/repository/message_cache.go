package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"realtime_chat/internal/domain"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MessageCacheRepository кеширует выдачи последних сообщений комнаты.
// Ключи параметризованы room+limit+offset, инвалидация сносит все варианты комнаты разом.
type MessageCacheRepository interface {
	Get(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, bool)
	Set(ctx context.Context, roomID uuid.UUID, limit, offset int, messages []*domain.MessageWithSender)
	InvalidateRoom(ctx context.Context, roomID uuid.UUID)
}

type messageCacheRepository struct {
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewMessageCacheRepository(redis *redis.Client, ttl time.Duration, log logger.Logger) MessageCacheRepository {
	return &messageCacheRepository{redis: redis, ttl: ttl, log: log}
}

func cacheKey(roomID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("room_messages:%s:%d:%d", roomID, limit, offset)
}

// Get возвращает (nil, false) при промахе или любой ошибке Redis — кеш деградирует молча
func (r *messageCacheRepository) Get(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, bool) {
	raw, err := r.redis.Get(ctx, cacheKey(roomID, limit, offset)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("Message cache read failed", "error", err, "room_id", roomID)
		}
		return nil, false
	}

	var messages []*domain.MessageWithSender
	if err := json.Unmarshal(raw, &messages); err != nil {
		r.log.Warn("Message cache contains invalid payload", "error", err, "room_id", roomID)
		return nil, false
	}

	return messages, true
}

func (r *messageCacheRepository) Set(ctx context.Context, roomID uuid.UUID, limit, offset int, messages []*domain.MessageWithSender) {
	raw, err := json.Marshal(messages)
	if err != nil {
		r.log.Warn("Failed to marshal messages for cache", "error", err, "room_id", roomID)
		return
	}

	if err := r.redis.Set(ctx, cacheKey(roomID, limit, offset), raw, r.ttl).Err(); err != nil {
		r.log.Warn("Message cache write failed", "error", err, "room_id", roomID)
	}
}

// InvalidateRoom сканирует и удаляет все закешированные варианты выдачи для комнаты
func (r *messageCacheRepository) InvalidateRoom(ctx context.Context, roomID uuid.UUID) {
	pattern := fmt.Sprintf("room_messages:%s:*", roomID)

	var cursor uint64
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			r.log.Warn("Message cache invalidation scan failed", "error", err, "room_id", roomID)
			return
		}
		if len(keys) > 0 {
			if err := r.redis.Del(ctx, keys...).Err(); err != nil {
				r.log.Warn("Message cache invalidation delete failed", "error", err, "room_id", roomID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}

package repository

import (
	"time"

	"realtime_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	User         UserRepository
	Room         RoomRepository
	Message      MessageRepository
	MessageCache MessageCacheRepository
	Notification NotificationRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, cacheTTL time.Duration, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Room:         NewRoomRepository(db, log),
		Message:      NewMessageRepository(db, log),
		MessageCache: NewMessageCacheRepository(redis, cacheTTL, log),
		Notification: NewNotificationRepository(db, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}
}

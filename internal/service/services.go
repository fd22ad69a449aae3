package service

import (
	"realtime_chat/internal/config"
	"realtime_chat/internal/repository"
	"realtime_chat/pkg/logger"
)

type Services struct {
	Auth         AuthService
	Room         RoomService
	Message      MessageService
	Notification NotificationService
	RateLimit    RateLimitService
	Email        EmailService
	Push         PushService
}

func NewServices(repos *repository.Repositories, publisher EventPublisher, cfg *config.Config, log logger.Logger) *Services {
	notification := NewNotificationService(repos.Notification, publisher, log)
	rateLimit := NewRateLimitService(repos.RateLimit, cfg.RateLimit, log)

	return &Services{
		Auth:         NewAuthService(repos.User, cfg.JWT, log),
		Room:         NewRoomService(repos.Room, repos.User, notification, log),
		Message:      NewMessageService(repos.Message, repos.MessageCache, repos.Room, rateLimit, notification, log),
		Notification: notification,
		RateLimit:    rateLimit,
		Email:        NewEmailService(log),
		Push:         NewPushService(log),
	}
}

package service

import (
	"context"

	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

// PushService — заглушка провайдера push-уведомлений (FCM/APNs)
type PushService interface {
	SendPush(ctx context.Context, userID uuid.UUID, title, body string) bool
}

type pushService struct {
	log logger.Logger
}

func NewPushService(log logger.Logger) PushService {
	return &pushService{log: log}
}

func (s *pushService) SendPush(ctx context.Context, userID uuid.UUID, title, body string) bool {
	s.log.Info("Push notification sent", "user_id", userID, "title", title)
	return true
}

package handler

import (
	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	"realtime_chat/pkg/logger"
)

type Handlers struct {
	Health         *HealthHandler
	Auth           *AuthHandler
	Room           *RoomHandler
	Message        *MessageHandler
	Notification   *NotificationHandler
	ChatWS         *WebSocketHandler
	NotificationWS *NotificationWSHandler
}

func NewHandlers(services *service.Services, chatHub *ws.Hub, notificationHub *ws.NotificationHub, log logger.Logger) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(),
		Auth:           NewAuthHandler(services.Auth, log),
		Room:           NewRoomHandler(services.Room, log),
		Message:        NewMessageHandler(services.Message, services.Room, log),
		Notification:   NewNotificationHandler(services.Notification, notificationHub, log),
		ChatWS:         NewWebSocketHandler(chatHub, services.Auth, services.Room, services.Message, log),
		NotificationWS: NewNotificationWSHandler(notificationHub, services.Auth, services.Notification, log),
	}
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	"realtime_chat/pkg/logger"
)

type NotificationWSHandler struct {
	hub                 *ws.NotificationHub
	authService         service.AuthService
	notificationService service.NotificationService
	log                 logger.Logger
}

func NewNotificationWSHandler(
	hub *ws.NotificationHub,
	authService service.AuthService,
	notificationService service.NotificationService,
	log logger.Logger,
) *NotificationWSHandler {
	return &NotificationWSHandler{
		hub:                 hub,
		authService:         authService,
		notificationService: notificationService,
		log:                 log,
	}
}

// HandleNotifications обслуживает /ws/notifications — персональный канал
// доставки уведомлений. Пользователь может держать несколько таких
// соединений одновременно (несколько вкладок).
func (h *NotificationWSHandler) HandleNotifications(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		closePolicyViolation(conn, "missing token")
		return
	}

	user, err := h.authService.ValidateToken(ctx, token)
	if err != nil {
		closePolicyViolation(conn, "invalid token")
		return
	}

	client := ws.NewUserConn(conn, user.ID, user.DisplayName)
	h.hub.Connect(client)
	h.log.Info("Notification connection opened", "user_id", user.ID)

	defer func() {
		h.hub.Disconnect(client)
		_ = client.Close()
		h.log.Info("Notification connection closed", "user_id", user.ID)
	}()

	// Сразу после подключения клиент получает актуальный счетчик непрочитанных
	if count, err := h.notificationService.UnreadCount(ctx, user.ID); err == nil {
		if err := client.Send(ws.Frame{
			Type: ws.FrameUnreadCount,
			Data: gin.H{"count": count},
		}); err != nil {
			return
		}
	} else {
		h.log.Warn("Failed to load unread count", "error", err, "user_id", user.ID)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Notification connection read failed", "error", err, "user_id", user.ID)
			}
			return
		}

		inbound, err := ws.DecodeInbound(raw)
		if err != nil {
			continue
		}

		// Канал уведомлений входящих команд не принимает, кроме ping
		if inbound.Kind == ws.InboundPing {
			if err := client.Send(ws.Frame{
				Type: ws.FramePong,
				Data: gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
			}); err != nil {
				return
			}
		}
	}
}

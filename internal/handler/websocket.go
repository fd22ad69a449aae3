package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"
)

const closeWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	hub            *ws.Hub
	authService    service.AuthService
	roomService    service.RoomService
	messageService service.MessageService
	log            logger.Logger
}

func NewWebSocketHandler(
	hub *ws.Hub,
	authService service.AuthService,
	roomService service.RoomService,
	messageService service.MessageService,
	log logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		authService:    authService,
		roomService:    roomService,
		messageService: messageService,
		log:            log,
	}
}

// HandleChat обслуживает /ws/chat/:id.
// Токен принимается query-параметром: браузерный WebSocket API не умеет
// выставлять заголовки при рукопожатии. Провал аутентификации или проверки
// членства закрывает сокет кодом 1008 уже после апгрейда.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

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

	isMember, err := h.roomService.IsParticipant(ctx, roomID, user.ID)
	if err != nil {
		h.log.Error("Failed to check room membership", "error", err, "room_id", roomID, "user_id", user.ID)
		closePolicyViolation(conn, "membership check failed")
		return
	}
	if !isMember {
		closePolicyViolation(conn, "not a room participant")
		return
	}

	client := ws.NewRoomConn(conn, user.ID, user.DisplayName, roomID)
	h.hub.Connect(client)
	h.log.Info("Chat connection opened", "room_id", roomID, "user_id", user.ID)

	defer func() {
		h.hub.Disconnect(client)
		_ = client.Close()
		h.log.Info("Chat connection closed", "room_id", roomID, "user_id", user.ID)
	}()

	// Подтверждение подключения с текущей заполненностью комнаты
	if err := client.Send(ws.Frame{
		Type: ws.FrameConnected,
		Data: gin.H{
			"room_id":         roomID,
			"user_id":         user.ID,
			"connected_users": h.hub.RoomUserCount(roomID),
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		},
	}); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("Chat connection read failed", "error", err, "user_id", user.ID)
			}
			return
		}

		inbound, err := ws.DecodeInbound(raw)
		if err != nil {
			if sendErr := client.Send(ws.Frame{
				Type: ws.FrameError,
				Data: gin.H{"error": "malformed frame"},
			}); sendErr != nil {
				return
			}
			continue
		}

		switch inbound.Kind {
		case ws.InboundSendMessage:
			if !h.handleSendMessage(c, client, user, inbound.Content) {
				return
			}
		case ws.InboundTypingStart:
			h.hub.TypingStart(client)
		case ws.InboundTypingStop:
			h.hub.TypingStop(client)
		case ws.InboundPing:
			if err := client.Send(ws.Frame{
				Type: ws.FramePong,
				Data: gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
			}); err != nil {
				return
			}
		default:
			h.log.Warn("Unknown frame type", "type", inbound.Type, "user_id", user.ID)
			if err := client.Send(ws.Frame{
				Type: ws.FrameError,
				Data: gin.H{"error": "unknown frame type: " + inbound.Type},
			}); err != nil {
				return
			}
		}
	}
}

// handleSendMessage возвращает false, если соединение мертво и цикл нужно завершить.
// Ошибки валидации и лимита — это рабочие ответы отправителю, а не причина разрыва.
func (h *WebSocketHandler) handleSendMessage(c *gin.Context, client *ws.Conn, user *domain.User, content string) bool {
	ctx := c.Request.Context()

	message, err := h.messageService.SendMessage(ctx, client.RoomID(), user, content)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrContentInvalid):
			return client.Send(ws.Frame{
				Type: ws.FrameMessageError,
				Data: gin.H{"error": "message must be between 1 and 500 characters"},
			}) == nil
		case errors.Is(err, apperrors.ErrRateLimited):
			info := h.messageService.RateLimitInfo(ctx, user.ID)
			return client.Send(ws.Frame{
				Type: ws.FrameRateLimitExceeded,
				Data: info,
			}) == nil
		default:
			h.log.Error("Failed to persist message", "error", err, "room_id", client.RoomID(), "user_id", user.ID)
			return client.Send(ws.Frame{
				Type: ws.FrameMessageError,
				Data: gin.H{"error": "failed to send message"},
			}) == nil
		}
	}

	// Подтверждение отправителю строго до рассылки остальным
	if err := client.Send(ws.Frame{
		Type: ws.FrameMessageSent,
		Data: gin.H{
			"message_id": message.ID,
			"timestamp":  message.CreatedAt.UTC().Format(time.RFC3339),
		},
	}); err != nil {
		return false
	}

	h.hub.Broadcast(client.RoomID(), ws.Frame{
		Type: ws.FrameNewMessage,
		Data: gin.H{
			"message_id":   message.ID,
			"room_id":      message.RoomID,
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"content":      message.Content,
			"timestamp":    message.CreatedAt.UTC().Format(time.RFC3339),
		},
	}, client)

	return true
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(closeWriteWait),
	)
	_ = conn.Close()
}

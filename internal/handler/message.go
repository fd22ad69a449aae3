package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"realtime_chat/internal/service"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"
)

type MessageHandler struct {
	messageService service.MessageService
	roomService    service.RoomService
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, roomService service.RoomService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		roomService:    roomService,
		log:            log,
	}
}

// History отдает последние сообщения комнаты в хронологическом порядке.
// Доступ только участникам.
func (h *MessageHandler) History(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	isMember, err := h.roomService.IsParticipant(c.Request.Context(), roomID, user.ID)
	if err != nil {
		h.log.Error("Failed to check room membership", "error", err, "room_id", roomID, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": apperrors.ErrNotParticipant.Error()})
		return
	}

	limit, offset := paginationParams(c)

	messages, err := h.messageService.GetMessages(c.Request.Context(), roomID, limit, offset)
	if err != nil {
		h.log.Error("Failed to load messages", "error", err, "room_id", roomID)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":  roomID,
		"messages": messages,
		"count":    len(messages),
	})
}

// RateLimit отдает текущее состояние лимита отправки для пользователя
func (h *MessageHandler) RateLimit(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	info := h.messageService.RateLimitInfo(c.Request.Context(), user.ID)
	c.JSON(http.StatusOK, info)
}

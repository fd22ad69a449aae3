package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	hub                 *ws.NotificationHub
	log                 logger.Logger
}

func NewNotificationHandler(notificationService service.NotificationService, hub *ws.NotificationHub, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		hub:                 hub,
		log:                 log,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := paginationParams(c)
	unreadOnly := c.Query("unread_only") == "true"

	notifications, err := h.notificationService.List(c.Request.Context(), user.ID, limit, offset, unreadOnly)
	if err != nil {
		h.log.Error("Failed to list notifications", "error", err, "user_id", user.ID)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("Failed to count unread notifications", "error", err, "user_id", user.ID)
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), notificationID, user.ID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	// Остальные вкладки пользователя узнают об изменении сразу
	h.hub.Push(user.ID, ws.Frame{
		Type: ws.FrameNotificationUpdate,
		Data: gin.H{"notification_id": notificationID, "is_read": true},
	})

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}

	if err := h.notificationService.Delete(c.Request.Context(), notificationID, user.ID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

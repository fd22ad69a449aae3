package ws

import (
	"sync"

	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

// NotificationHub — реестр соединений канала уведомлений, ключ — пользователь.
// Отдельная структура от Hub: чат-сокеты и сокеты уведомлений не пересекаются.
type NotificationHub struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[*Conn]struct{}
	log   logger.Logger
}

func NewNotificationHub(log logger.Logger) *NotificationHub {
	return &NotificationHub{
		users: make(map[uuid.UUID]map[*Conn]struct{}),
		log:   log,
	}
}

func (h *NotificationHub) Connect(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := conn.UserID()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Conn]struct{})
	}
	h.users[userID][conn] = struct{}{}
}

// Disconnect идемпотентен; пустой набор пользователя удаляется сразу
func (h *NotificationHub) Disconnect(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := conn.UserID()
	conns, ok := h.users[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.users, userID)
	}
}

// Push доставляет кадр на все соединения пользователя.
// Возвращает true, если доставлено хотя бы одно. Мертвые соединения вычищаются.
func (h *NotificationHub) Push(userID uuid.UUID, frame Frame) bool {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(frame); err != nil {
			h.log.Warn("Dropping dead notification connection", "error", err, "user_id", userID)
			h.Disconnect(conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}

	return delivered > 0
}

// ConnectionCount возвращает число живых соединений пользователя
func (h *NotificationHub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

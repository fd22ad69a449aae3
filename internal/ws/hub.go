package ws

import (
	"sync"

	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

// Hub — реестр соединений комнат. Владеет только бухгалтерией:
// какая комната держит какие соединения, кто сейчас печатает.
// Вся бизнес-логика живет уровнем выше.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Conn]struct{}
	typing map[uuid.UUID]map[uuid.UUID]struct{}
	log    logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Conn]struct{}),
		typing: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		log:    log,
	}
}

// Connect регистрирует соединение в его комнате и анонсирует вход остальным.
// Сбой анонса не делает подключение неуспешным.
func (h *Hub) Connect(conn *Conn) {
	roomID := conn.RoomID()

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Conn]struct{})
	}
	h.rooms[roomID][conn] = struct{}{}
	h.mu.Unlock()

	h.Broadcast(roomID, Frame{
		Type: FrameUserJoined,
		Data: presenceData(conn),
	}, conn)
}

// Disconnect убирает соединение из комнаты и из набора печатающих.
// Повторный вызов для уже удаленного соединения — no-op.
func (h *Hub) Disconnect(conn *Conn) {
	roomID := conn.RoomID()

	h.mu.Lock()
	conns, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[conn]; !ok {
		h.mu.Unlock()
		return
	}

	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}

	// Отключение снимает флаг "печатает" независимо от typing_stop
	if typers, ok := h.typing[roomID]; ok {
		delete(typers, conn.UserID())
		if len(typers) == 0 {
			delete(h.typing, roomID)
		}
	}

	remaining := h.snapshotLocked(roomID, nil)
	h.mu.Unlock()

	h.deliver(remaining, Frame{
		Type: FrameUserLeft,
		Data: presenceData(conn),
	})
}

// Broadcast доставляет кадр всем соединениям комнаты, кроме exclude.
// Соединение с неудавшейся записью считается мертвым и вычищается,
// не прерывая доставку остальным.
func (h *Hub) Broadcast(roomID uuid.UUID, frame Frame, exclude *Conn) {
	h.mu.RLock()
	targets := h.snapshotLocked(roomID, exclude)
	h.mu.RUnlock()

	h.deliver(targets, frame)
}

// TypingStart помечает пользователя печатающим. Повторная пометка анонс не дублирует.
func (h *Hub) TypingStart(conn *Conn) {
	roomID := conn.RoomID()

	h.mu.Lock()
	if h.typing[roomID] == nil {
		h.typing[roomID] = make(map[uuid.UUID]struct{})
	}
	_, already := h.typing[roomID][conn.UserID()]
	h.typing[roomID][conn.UserID()] = struct{}{}
	h.mu.Unlock()

	if already {
		return
	}

	h.Broadcast(roomID, Frame{
		Type: FrameUserTyping,
		Data: presenceData(conn),
	}, conn)
}

// TypingStop снимает пометку. Для непомеченного пользователя — no-op без анонса.
func (h *Hub) TypingStop(conn *Conn) {
	roomID := conn.RoomID()

	h.mu.Lock()
	typers, ok := h.typing[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := typers[conn.UserID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(typers, conn.UserID())
	if len(typers) == 0 {
		delete(h.typing, roomID)
	}
	h.mu.Unlock()

	h.Broadcast(roomID, Frame{
		Type: FrameUserStoppedTyping,
		Data: presenceData(conn),
	}, conn)
}

// RoomUserCount возвращает число живых соединений комнаты
func (h *Hub) RoomUserCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// TypingUsers возвращает пользователей, помеченных печатающими
func (h *Hub) TypingUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.typing[roomID]))
	for userID := range h.typing[roomID] {
		users = append(users, userID)
	}
	return users
}

// snapshotLocked копирует получателей комнаты; вызывается под блокировкой
func (h *Hub) snapshotLocked(roomID uuid.UUID, exclude *Conn) []*Conn {
	conns := h.rooms[roomID]
	targets := make([]*Conn, 0, len(conns))
	for c := range conns {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	return targets
}

// deliver шлет кадр каждому получателю; мертвые соединения отключает каскадно
func (h *Hub) deliver(targets []*Conn, frame Frame) {
	for _, conn := range targets {
		if err := conn.Send(frame); err != nil {
			h.log.Warn("Dropping dead connection", "error", err, "user_id", conn.UserID(), "room_id", conn.RoomID())
			h.Disconnect(conn)
			_ = conn.Close()
		}
	}
}

func presenceData(c *Conn) map[string]interface{} {
	return map[string]interface{}{
		"user_id":      c.UserID(),
		"display_name": c.DisplayName(),
		"timestamp":    nowTimestamp(),
	}
}

package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// socket — минимальный контракт транспорта; его реализует *websocket.Conn
type socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn — одно живое соединение, привязанное к аутентифицированному пользователю.
// Все записи в сокет сериализуются мьютексом: один писатель на соединение.
type Conn struct {
	id          uuid.UUID
	userID      uuid.UUID
	displayName string
	roomID      uuid.UUID // uuid.Nil для канала уведомлений
	createdAt   time.Time

	mu   sync.Mutex
	sock socket
}

// NewRoomConn создает чат-соединение, привязанное ровно к одной комнате
func NewRoomConn(sock socket, userID uuid.UUID, displayName string, roomID uuid.UUID) *Conn {
	return &Conn{
		id:          uuid.New(),
		userID:      userID,
		displayName: displayName,
		roomID:      roomID,
		createdAt:   time.Now(),
		sock:        sock,
	}
}

// NewUserConn создает соединение канала уведомлений (без комнаты)
func NewUserConn(sock socket, userID uuid.UUID, displayName string) *Conn {
	return &Conn{
		id:          uuid.New(),
		userID:      userID,
		displayName: displayName,
		createdAt:   time.Now(),
		sock:        sock,
	}
}

func (c *Conn) ID() uuid.UUID        { return c.id }
func (c *Conn) UserID() uuid.UUID    { return c.userID }
func (c *Conn) DisplayName() string  { return c.displayName }
func (c *Conn) RoomID() uuid.UUID    { return c.roomID }
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// Send пишет кадр в сокет. Ошибка означает мертвое соединение —
// вызывающий обязан исключить его из реестра.
func (c *Conn) Send(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.Close()
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeNewMessage    NotificationType = "new_message"
	NotificationTypeRoomInvite    NotificationType = "room_invite"
	NotificationTypeFriendRequest NotificationType = "friend_request"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID        uuid.UUID          `json:"notification_id"`
	UserID    uuid.UUID          `json:"user_id"`
	Type      NotificationType   `json:"type"`
	Content   string             `json:"content"`
	Status    NotificationStatus `json:"status"`
	IsRead    bool               `json:"is_read"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NotificationEvent — неизменяемый факт, путешествующий от publisher к worker через очередь.
// Счетчик retry_count переносится в самом payload, а не в метаданных брокера.
type NotificationEvent struct {
	Type         NotificationType `json:"type"`
	ActorID      uuid.UUID        `json:"actor_id"`
	ActorName    string           `json:"actor_name"`
	RecipientIDs []uuid.UUID      `json:"recipient_ids"`
	Payload      json.RawMessage  `json:"payload"`
	Timestamp    time.Time        `json:"timestamp"`
	RetryCount   int              `json:"retry_count"`
}

// Типизированные payload для каждого вида события.
type MessageEventPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	RoomID    uuid.UUID `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Content   string    `json:"content"`
}

type RoomInviteEventPayload struct {
	RoomID      uuid.UUID `json:"room_id"`
	RoomName    string    `json:"room_name"`
	Description string    `json:"description,omitempty"`
}

type FriendRequestEventPayload struct {
	RequestID uuid.UUID `json:"request_id"`
}

func NewMessageEvent(actorID uuid.UUID, actorName string, recipients []uuid.UUID, payload MessageEventPayload) NotificationEvent {
	raw, _ := json.Marshal(payload)
	return NotificationEvent{
		Type:         NotificationTypeNewMessage,
		ActorID:      actorID,
		ActorName:    actorName,
		RecipientIDs: recipients,
		Payload:      raw,
		Timestamp:    time.Now().UTC(),
	}
}

func NewRoomInviteEvent(actorID uuid.UUID, actorName string, recipients []uuid.UUID, payload RoomInviteEventPayload) NotificationEvent {
	raw, _ := json.Marshal(payload)
	return NotificationEvent{
		Type:         NotificationTypeRoomInvite,
		ActorID:      actorID,
		ActorName:    actorName,
		RecipientIDs: recipients,
		Payload:      raw,
		Timestamp:    time.Now().UTC(),
	}
}

func NewFriendRequestEvent(actorID uuid.UUID, actorName string, recipient uuid.UUID, payload FriendRequestEventPayload) NotificationEvent {
	raw, _ := json.Marshal(payload)
	return NotificationEvent{
		Type:         NotificationTypeFriendRequest,
		ActorID:      actorID,
		ActorName:    actorName,
		RecipientIDs: []uuid.UUID{recipient},
		Timestamp:    time.Now().UTC(),
		Payload:      raw,
	}
}

// RoutingKey возвращает ключ маршрутизации для topic exchange
func (e NotificationEvent) RoutingKey() string {
	switch e.Type {
	case NotificationTypeNewMessage:
		return "notification.message.new"
	case NotificationTypeRoomInvite:
		return "notification.room.invite"
	case NotificationTypeFriendRequest:
		return "notification.friend.request"
	default:
		return "notification.unknown"
	}
}

const messagePreviewLength = 100

// MessagePreview обрезает текст сообщения для уведомления.
// Лимит считается в символах, срез по байтам ломал бы многобайтовые руны.
func MessagePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= messagePreviewLength {
		return content
	}
	return string(runes[:messagePreviewLength]) + "..."
}

// NotificationFromEvent строит персистентную запись уведомления для одного получателя.
// Content — JSON-документ с данными события; превью сообщения обрезается до 100 символов.
func NotificationFromEvent(event NotificationEvent, recipientID uuid.UUID) *Notification {
	content := map[string]interface{}{
		"actor_id":   event.ActorID,
		"actor_name": event.ActorName,
	}

	switch event.Type {
	case NotificationTypeNewMessage:
		var p MessageEventPayload
		if err := json.Unmarshal(event.Payload, &p); err == nil {
			content["message_id"] = p.MessageID
			content["room_id"] = p.RoomID
			content["room_name"] = p.RoomName
			content["message_preview"] = MessagePreview(p.Content)
		}
	case NotificationTypeRoomInvite:
		var p RoomInviteEventPayload
		if err := json.Unmarshal(event.Payload, &p); err == nil {
			content["room_id"] = p.RoomID
			content["room_name"] = p.RoomName
		}
	case NotificationTypeFriendRequest:
		var p FriendRequestEventPayload
		if err := json.Unmarshal(event.Payload, &p); err == nil {
			content["request_id"] = p.RequestID
		}
	}

	raw, _ := json.Marshal(content)
	now := time.Now()

	return &Notification{
		ID:        uuid.New(),
		UserID:    recipientID,
		Type:      event.Type,
		Content:   string(raw),
		Status:    NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Ключи маршрутизации канальных заданий: по ним задания попадают
// в очереди email_notifications и push_notifications
const (
	RoutingKeyEmailDelivery = "notification.email.send"
	RoutingKeyPushDelivery  = "notification.push.send"
)

// DeliveryJob — задание на доставку уведомления по одному внешнему каналу.
// Заголовок и текст уже отрендерены публикующим воркером.
type DeliveryJob struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
}

// RetryRoutingKey — ключ для повторной публикации события после сбоя обработки
func (e NotificationEvent) RetryRoutingKey() string {
	switch e.Type {
	case NotificationTypeNewMessage:
		return "notification.message.retry"
	case NotificationTypeRoomInvite:
		return "notification.room.retry"
	case NotificationTypeFriendRequest:
		return "notification.friend.retry"
	default:
		return "notification.unknown"
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

const MaxMessageLength = 500

type Message struct {
	ID        uuid.UUID `json:"message_id"`
	RoomID    uuid.UUID `json:"room_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageWithSender — сообщение вместе с данными отправителя для выдачи клиентам
type MessageWithSender struct {
	Message
	SenderDisplayName string  `json:"sender_display_name"`
	SenderAvatarURL   *string `json:"sender_avatar_url,omitempty"`
}

// RateLimitInfo — состояние лимита отправки для одного пользователя
type RateLimitInfo struct {
	MessagesSent      int `json:"messages_sent"`
	MessagesRemaining int `json:"messages_remaining"`
	ResetInSeconds    int `json:"reset_in_seconds"`
	Limit             int `json:"limit"`
}

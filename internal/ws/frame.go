package ws

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Конверт кадра, общий для чат-канала и канала уведомлений
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Типы кадров сервер → клиент
const (
	FrameConnected          = "connected"
	FrameNewMessage         = "new_message"
	FrameMessageSent        = "message_sent"
	FrameMessageError       = "message_error"
	FrameUserJoined         = "user_joined"
	FrameUserLeft           = "user_left"
	FrameUserTyping         = "user_typing"
	FrameUserStoppedTyping  = "user_stopped_typing"
	FramePong               = "pong"
	FrameError              = "error"
	FrameRateLimitExceeded  = "rate_limit_exceeded"
	FrameNewNotification    = "new_notification"
	FrameNotificationUpdate = "notification_update"
	FrameUnreadCount        = "unread_count"
)

// Типы кадров клиент → сервер
const (
	frameSendMessage = "send_message"
	frameTypingStart = "typing_start"
	frameTypingStop  = "typing_stop"
	framePing        = "ping"
)

// InboundKind — закрытое множество входящих кадров.
// Строка типа декодируется один раз на границе, дальше диспетчеризация по enum.
type InboundKind int

const (
	InboundSendMessage InboundKind = iota
	InboundTypingStart
	InboundTypingStop
	InboundPing
	InboundUnknown
)

type Inbound struct {
	Kind    InboundKind
	Type    string // исходная строка типа, для диагностики unknown
	Content string // только для send_message
}

var ErrMalformedFrame = errors.New("malformed frame")

type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeInbound разбирает сырой кадр. Неизвестный тип не является ошибкой —
// возвращается InboundUnknown, решение за обработчиком.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, ErrMalformedFrame
	}
	if strings.TrimSpace(env.Type) == "" {
		return Inbound{}, ErrMalformedFrame
	}

	switch env.Type {
	case frameSendMessage:
		var data struct {
			Content string `json:"content"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return Inbound{}, ErrMalformedFrame
			}
		}
		return Inbound{Kind: InboundSendMessage, Type: env.Type, Content: data.Content}, nil
	case frameTypingStart:
		return Inbound{Kind: InboundTypingStart, Type: env.Type}, nil
	case frameTypingStop:
		return Inbound{Kind: InboundTypingStop, Type: env.Type}, nil
	case framePing:
		return Inbound{Kind: InboundPing, Type: env.Type}, nil
	default:
		return Inbound{Kind: InboundUnknown, Type: env.Type}, nil
	}
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

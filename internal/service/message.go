package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/repository"
	apperrors "realtime_chat/pkg/errors"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

type MessageService interface {
	// SendMessage валидирует, проверяет лимит, сохраняет сообщение,
	// инвалидирует кеш и асинхронно инициирует уведомления остальным участникам.
	SendMessage(ctx context.Context, roomID uuid.UUID, sender *domain.User, content string) (*domain.Message, error)
	GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, error)
	RateLimitInfo(ctx context.Context, senderID uuid.UUID) domain.RateLimitInfo
}

type messageService struct {
	messageRepo  repository.MessageRepository
	messageCache repository.MessageCacheRepository
	roomRepo     repository.RoomRepository
	rateLimit    RateLimitService
	notification NotificationService
	log          logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	messageCache repository.MessageCacheRepository,
	roomRepo repository.RoomRepository,
	rateLimit RateLimitService,
	notification NotificationService,
	log logger.Logger,
) MessageService {
	return &messageService{
		messageRepo:  messageRepo,
		messageCache: messageCache,
		roomRepo:     roomRepo,
		rateLimit:    rateLimit,
		notification: notification,
		log:          log,
	}
}

func (s *messageService) SendMessage(ctx context.Context, roomID uuid.UUID, sender *domain.User, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	// Длина считается в символах, не в байтах
	if content == "" || utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return nil, apperrors.ErrContentInvalid
	}

	if !s.rateLimit.Allow(ctx, sender.ID) {
		return nil, apperrors.ErrRateLimited
	}

	message := &domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  sender.ID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	s.messageCache.InvalidateRoom(ctx, roomID)

	// Уведомления не задерживают ответ отправителю
	s.emitMessageEvent(ctx, message, sender)

	return message, nil
}

func (s *messageService) emitMessageEvent(ctx context.Context, message *domain.Message, sender *domain.User) {
	room, err := s.roomRepo.GetByID(ctx, message.RoomID)
	if err != nil {
		s.log.Error("Failed to load room for notification event", "error", err, "room_id", message.RoomID)
		return
	}

	participants, err := s.roomRepo.GetParticipants(ctx, message.RoomID)
	if err != nil {
		s.log.Error("Failed to load participants for notification event", "error", err, "room_id", message.RoomID)
		return
	}

	recipients := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.UserID != sender.ID {
			recipients = append(recipients, p.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	event := domain.NewMessageEvent(sender.ID, sender.DisplayName, recipients, domain.MessageEventPayload{
		MessageID: message.ID,
		RoomID:    message.RoomID,
		RoomName:  room.Name,
		Content:   message.Content,
	})

	s.notification.Emit(event)
}

func (s *messageService) GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.MessageWithSender, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if cached, ok := s.messageCache.Get(ctx, roomID, limit, offset); ok {
		return cached, nil
	}

	messages, err := s.messageRepo.GetRecent(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		s.messageCache.Set(ctx, roomID, limit, offset, messages)
	}

	return messages, nil
}

func (s *messageService) RateLimitInfo(ctx context.Context, senderID uuid.UUID) domain.RateLimitInfo {
	return s.rateLimit.Info(ctx, senderID)
}

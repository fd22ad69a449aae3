package service

import (
	"context"
	"fmt"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/repository"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
)

// EventPublisher абстрагирует транспорт очереди; реализуется queue.Client
type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.NotificationEvent) error
}

type NotificationService interface {
	// Emit ставит событие в исходящую очередь, не дожидаясь доставки.
	// Вызывающий не блокируется; сбои логируются, но не теряются молча.
	Emit(event domain.NotificationEvent)
	// Dispatch публикует событие в брокер; при сбое публикации создает
	// записи уведомлений напрямую, минуя очередь.
	Dispatch(ctx context.Context, event domain.NotificationEvent)
	CreateDirect(ctx context.Context, event domain.NotificationEvent) error
	Run(ctx context.Context)

	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	Delete(ctx context.Context, notificationID, userID uuid.UUID) error
}

const outboundQueueSize = 256

type notificationService struct {
	notificationRepo repository.NotificationRepository
	publisher        EventPublisher
	events           chan domain.NotificationEvent
	log              logger.Logger
}

func NewNotificationService(notificationRepo repository.NotificationRepository, publisher EventPublisher, log logger.Logger) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		events:           make(chan domain.NotificationEvent, outboundQueueSize),
		log:              log,
	}
}

func (s *notificationService) Emit(event domain.NotificationEvent) {
	select {
	case s.events <- event:
	default:
		// Исходящая очередь заполнена — обрабатываем событие в обход нее
		s.log.Warn("Outbound event queue full, dispatching inline", "type", event.Type)
		go s.Dispatch(context.Background(), event)
	}
}

// Run выгребает исходящую очередь до отмены контекста
func (s *notificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			s.Dispatch(ctx, event)
		}
	}
}

func (s *notificationService) Dispatch(ctx context.Context, event domain.NotificationEvent) {
	if s.publisher != nil {
		err := s.publisher.PublishEvent(ctx, event)
		if err == nil {
			return
		}
		s.log.Warn("Broker publish failed, falling back to direct notification creation",
			"error", err, "type", event.Type)
	}

	if err := s.CreateDirect(ctx, event); err != nil {
		s.log.Error("Direct notification creation failed", "error", err, "type", event.Type)
	}
}

// CreateDirect пишет записи уведомлений для всех получателей синхронно.
// Сбой на одном получателе не прерывает остальных.
func (s *notificationService) CreateDirect(ctx context.Context, event domain.NotificationEvent) error {
	var failed int
	for _, recipientID := range event.RecipientIDs {
		record := domain.NotificationFromEvent(event, recipientID)
		if err := s.notificationRepo.Create(ctx, record); err != nil {
			s.log.Error("Failed to create notification record", "error", err, "user_id", recipientID)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to create %d of %d notifications", failed, len(event.RecipientIDs))
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.notificationRepo.ListByUser(ctx, userID, limit, offset, unreadOnly)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.notificationRepo.MarkRead(ctx, notificationID, userID)
}

func (s *notificationService) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.notificationRepo.Delete(ctx, notificationID, userID)
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"realtime_chat/internal/domain"
	"realtime_chat/internal/repository"
	"realtime_chat/internal/service"
	"realtime_chat/internal/ws"
	"realtime_chat/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const maxRetries = 3

// Pusher доставляет live-уведомление в открытые сокеты пользователя.
// Реализуется ws.NotificationHub; в отдельном процессе воркера — NopPusher.
type Pusher interface {
	Push(userID uuid.UUID, frame ws.Frame) bool
}

// Requeuer переотправляет событие после сбоя обработки
type Requeuer interface {
	PublishRetry(ctx context.Context, event domain.NotificationEvent) error
}

// DeliveryRouter направляет канальные задания в очереди email_notifications
// и push_notifications, откуда их забирают ProcessEmail и ProcessPush
type DeliveryRouter interface {
	PublishDelivery(ctx context.Context, routingKey string, job domain.DeliveryJob) error
}

// Outcome — исход обработки одного сообщения очереди
type Outcome int

const (
	OutcomeAcked Outcome = iota
	OutcomeRequeued
	OutcomeDeadLettered
	OutcomeRequeueFailed
)

type Worker struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	pusher           Pusher
	email            service.EmailService
	push             service.PushService
	router           DeliveryRouter
	requeuer         Requeuer
	log              logger.Logger
}

func New(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	pusher Pusher,
	email service.EmailService,
	push service.PushService,
	router DeliveryRouter,
	requeuer Requeuer,
	log logger.Logger,
) *Worker {
	return &Worker{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		email:            email,
		push:             push,
		router:           router,
		requeuer:         requeuer,
		log:              log,
	}
}

// Run обрабатывает события из очереди message_notifications строго по одной
// (prefetch ограничен каналом брокера).
// Подтверждение — ровно одно на сообщение и только после обработки.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.consume(ctx, deliveries, w.Process)
}

// RunEmail обслуживает очередь email_notifications
func (w *Worker) RunEmail(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.consume(ctx, deliveries, w.ProcessEmail)
}

// RunPush обслуживает очередь push_notifications
func (w *Worker) RunPush(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.consume(ctx, deliveries, w.ProcessPush)
}

func (w *Worker) consume(ctx context.Context, deliveries <-chan amqp.Delivery, process func(context.Context, []byte) Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			outcome := process(ctx, d.Body)
			if outcome == OutcomeRequeueFailed {
				// Не удалось переопубликовать — возвращаем сообщение брокеру
				if err := d.Nack(false, true); err != nil {
					w.log.Error("Failed to nack message", "error", err)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				w.log.Error("Failed to ack message", "error", err)
			}
		}
	}
}

// Process разбирает событие и проводит его через состояния
// Processing → {Acked, RequeuedWithBackoff, DeadLettered}
func (w *Worker) Process(ctx context.Context, body []byte) Outcome {
	var event domain.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Мусор бесконечно не перекладываем
		w.log.Error("Dropping undecodable queue message", "error", err)
		return OutcomeAcked
	}

	switch event.Type {
	case domain.NotificationTypeNewMessage, domain.NotificationTypeRoomInvite, domain.NotificationTypeFriendRequest:
	default:
		w.log.Warn("Dropping notification event of unknown type", "type", event.Type)
		return OutcomeAcked
	}

	records, err := w.createRecords(ctx, event)
	if err != nil {
		return w.retryOrDeadLetter(ctx, event, err)
	}

	// Доставка по каналам: сбой одного получателя не прерывает остальных
	for _, record := range records {
		w.deliver(ctx, event, record)
	}

	return OutcomeAcked
}

// createRecords пишет записи уведомлений для всех получателей.
// Любой сбой записи до фиксации — повод для повтора всего события.
func (w *Worker) createRecords(ctx context.Context, event domain.NotificationEvent) ([]*domain.Notification, error) {
	records := make([]*domain.Notification, 0, len(event.RecipientIDs))
	for _, recipientID := range event.RecipientIDs {
		record := domain.NotificationFromEvent(event, recipientID)
		if err := w.notificationRepo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("create notification for %s: %w", recipientID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (w *Worker) deliver(ctx context.Context, event domain.NotificationEvent, record *domain.Notification) {
	title, message := renderNotification(event)

	if delivered := w.pusher.Push(record.UserID, ws.Frame{
		Type: ws.FrameNewNotification,
		Data: record,
	}); !delivered {
		w.log.Debug("No live notification sockets for user", "user_id", record.UserID)
	}

	// Внешние каналы уходят в свои очереди; при сбое публикации
	// доставляем инлайн, чтобы задание не потерялось
	job := domain.DeliveryJob{
		NotificationID: record.ID,
		UserID:         record.UserID,
		Title:          title,
		Message:        message,
	}

	if err := w.router.PublishDelivery(ctx, domain.RoutingKeyPushDelivery, job); err != nil {
		w.log.Warn("Failed to route push delivery job, sending inline", "error", err, "notification_id", record.ID)
		w.sendPush(ctx, job)
	}

	if err := w.router.PublishDelivery(ctx, domain.RoutingKeyEmailDelivery, job); err != nil {
		w.log.Warn("Failed to route email delivery job, sending inline", "error", err, "notification_id", record.ID)
		w.sendEmail(ctx, job)
	}

	// SENT означает, что запись создана и доставка предпринята;
	// неудача отдельного канала статус не меняет
	if err := w.notificationRepo.UpdateStatus(ctx, record.ID, domain.NotificationStatusSent); err != nil {
		w.log.Warn("Failed to mark notification sent", "error", err, "notification_id", record.ID)
	}
}

// ProcessEmail выполняет задание из очереди email_notifications
func (w *Worker) ProcessEmail(ctx context.Context, body []byte) Outcome {
	var job domain.DeliveryJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.Error("Dropping undecodable delivery job", "error", err)
		return OutcomeAcked
	}

	w.sendEmail(ctx, job)
	return OutcomeAcked
}

// ProcessPush выполняет задание из очереди push_notifications
func (w *Worker) ProcessPush(ctx context.Context, body []byte) Outcome {
	var job domain.DeliveryJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.Error("Dropping undecodable delivery job", "error", err)
		return OutcomeAcked
	}

	w.sendPush(ctx, job)
	return OutcomeAcked
}

func (w *Worker) sendEmail(ctx context.Context, job domain.DeliveryJob) {
	user, err := w.userRepo.GetByID(ctx, job.UserID)
	if err != nil {
		w.log.Warn("Failed to load recipient for email delivery", "error", err, "user_id", job.UserID)
		return
	}
	if ok := w.email.SendEmail(ctx, user.Email, job.Title, job.Message); !ok {
		w.log.Warn("Email provider delivery failed", "user_id", job.UserID, "notification_id", job.NotificationID)
	}
}

func (w *Worker) sendPush(ctx context.Context, job domain.DeliveryJob) {
	if ok := w.push.SendPush(ctx, job.UserID, job.Title, job.Message); !ok {
		w.log.Warn("Push provider delivery failed", "user_id", job.UserID, "notification_id", job.NotificationID)
	}
}

func (w *Worker) retryOrDeadLetter(ctx context.Context, event domain.NotificationEvent, cause error) Outcome {
	if event.RetryCount >= maxRetries {
		w.log.Error("Max retries exceeded, dead-lettering notification event",
			"error", cause, "type", event.Type, "retry_count", event.RetryCount)
		return OutcomeDeadLettered
	}

	event.RetryCount++
	if err := w.requeuer.PublishRetry(ctx, event); err != nil {
		w.log.Error("Failed to requeue notification event", "error", err, "type", event.Type)
		return OutcomeRequeueFailed
	}

	w.log.Warn("Requeued notification event after processing failure",
		"error", cause, "type", event.Type, "retry_count", event.RetryCount)
	return OutcomeRequeued
}

// renderNotification строит заголовок и текст для push/email каналов
func renderNotification(event domain.NotificationEvent) (title, message string) {
	switch event.Type {
	case domain.NotificationTypeNewMessage:
		var p domain.MessageEventPayload
		_ = json.Unmarshal(event.Payload, &p)
		title = fmt.Sprintf("New message from %s in '%s'", event.ActorName, p.RoomName)
		message = fmt.Sprintf("%s: %s", event.ActorName, domain.MessagePreview(p.Content))
	case domain.NotificationTypeRoomInvite:
		var p domain.RoomInviteEventPayload
		_ = json.Unmarshal(event.Payload, &p)
		title = fmt.Sprintf("Invitation to join '%s'", p.RoomName)
		message = fmt.Sprintf("%s invited you to join '%s'", event.ActorName, p.RoomName)
	case domain.NotificationTypeFriendRequest:
		title = "New friend request"
		message = fmt.Sprintf("%s sent you a friend request", event.ActorName)
	default:
		title = "New notification"
		message = "You have a new notification"
	}
	return title, message
}

// NopPusher используется процессом воркера без собственного реестра сокетов:
// состояние соединений живет в памяти API-процесса и между процессами не разделяется
type NopPusher struct{}

func (NopPusher) Push(uuid.UUID, ws.Frame) bool { return false }

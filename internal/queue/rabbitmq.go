package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realtime_chat/internal/config"
	"realtime_chat/internal/domain"
	"realtime_chat/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeNotifications = "notifications"

	QueueMessageNotifications = "message_notifications"
	QueueEmailNotifications   = "email_notifications"
	QueuePushNotifications    = "push_notifications"
)

// Привязки очередей к topic exchange по категориям
var queueBindings = map[string][]string{
	QueueMessageNotifications: {"notification.message.*", "notification.room.*", "notification.friend.*"},
	QueueEmailNotifications:   {"notification.email.*"},
	QueuePushNotifications:    {"notification.push.*"},
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	cfg      config.RabbitMQConfig
	exchange string
	log      logger.Logger
}

func NewClient(cfg config.RabbitMQConfig, log logger.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = ExchangeNotifications
	}

	c := &Client{conn: conn, channel: ch, cfg: cfg, exchange: exchange, log: log}
	if err := c.declareTopology(); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) declareTopology() error {
	if err := c.channel.ExchangeDeclare(
		c.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for queueName, keys := range queueBindings {
		if _, err := c.channel.QueueDeclare(
			queueName,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queueName, err)
		}

		for _, key := range keys {
			if err := c.channel.QueueBind(queueName, key, c.exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", queueName, key, err)
			}
		}
	}

	return nil
}

// Publish публикует тело под ключом маршрутизации с persistent delivery mode
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	return c.channel.PublishWithContext(
		ctx,
		c.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

// PublishEvent сериализует событие и публикует его под ключом его типа
func (c *Client) PublishEvent(ctx context.Context, event domain.NotificationEvent) error {
	return c.publishEvent(ctx, event, event.RoutingKey())
}

// PublishRetry переотправляет событие под retry-ключом; retry_count уже увеличен вызывающим
func (c *Client) PublishRetry(ctx context.Context, event domain.NotificationEvent) error {
	return c.publishEvent(ctx, event, event.RetryRoutingKey())
}

// PublishDelivery направляет канальное задание в очередь email или push
func (c *Client) PublishDelivery(ctx context.Context, routingKey string, job domain.DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal delivery job: %w", err)
	}

	if err := c.Publish(ctx, routingKey, body); err != nil {
		c.log.Error("Failed to publish delivery job", "error", err, "routing_key", routingKey)
		return err
	}

	return nil
}

func (c *Client) publishEvent(ctx context.Context, event domain.NotificationEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := c.Publish(ctx, routingKey, body); err != nil {
		c.log.Error("Failed to publish notification event", "error", err, "routing_key", routingKey)
		return err
	}

	c.log.Debug("Published notification event", "routing_key", routingKey, "type", event.Type)
	return nil
}

// Consume открывает поток доставок из очереди с ручным подтверждением.
// prefetch ограничивает число неподтвержденных сообщений на консьюмера.
func (c *Client) Consume(queueName, consumerTag string) (<-chan amqp.Delivery, error) {
	if err := c.channel.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := c.channel.Consume(
		queueName,
		consumerTag,
		false, // auto-ack выключен: подтверждаем после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	return deliveries, nil
}

func (c *Client) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

func (c *Client) Close() {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Warn("Failed to close rabbitmq channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("Failed to close rabbitmq connection", "error", err)
		}
	}
}

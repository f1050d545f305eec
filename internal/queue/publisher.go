package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Publisher = (*RabbitMQPublisher)(nil)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg DispatchMessage) error {
	return p.publish(ctx, WorkQueue, msg, "")
}

func (p *RabbitMQPublisher) PublishDelayed(ctx context.Context, msg DispatchMessage, delay time.Duration) error {
	if delay <= 0 {
		return p.Publish(ctx, msg)
	}
	return p.publish(ctx, RetryQueue, msg, expirationMillis(delay))
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, msg DispatchMessage, expiration string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid dispatch message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     fmt.Sprintf("%s:%d", msg.NotificationID, msg.Attempt),
		CorrelationId: msg.CorrelationID,
		Expiration:    expiration,
		Body:          payload,
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// expirationMillis renders a per-message TTL in the string form RabbitMQ expects.
func expirationMillis(delay time.Duration) string {
	ms := delay.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

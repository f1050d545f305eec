package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dlxExchangeName  = "notifications.dlx"
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// RabbitMQ owns the broker connection shared by the publisher and consumer.
// Every channel it hands out has the dispatch topology declared.
type RabbitMQ struct {
	url    string
	logger *zap.Logger

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
}

func NewRabbitMQ(url string, logger *zap.Logger) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RabbitMQ{url: url, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

// Connected reports whether the underlying connection is open.
func (r *RabbitMQ) Connected() bool {
	conn := r.currentConn()
	return conn != nil && !conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

func (r *RabbitMQ) currentConn() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	ch, err := r.currentConn().Channel()
	if err != nil {
		r.logger.Warn("rabbitmq channel open failed, reconnecting", zap.Error(err))
		if errReconnect := r.reconnectWithBackoff(ctx); errReconnect != nil {
			return nil, errReconnect
		}

		ch, err = r.currentConn().Channel()
		if err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return ch, nil
}

func (r *RabbitMQ) ensureConnected(ctx context.Context) error {
	if r.Connected() {
		return nil
	}
	return r.reconnectWithBackoff(ctx)
}

func (r *RabbitMQ) reconnectWithBackoff(ctx context.Context) error {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	// Another caller may have reconnected while we waited for the mutex.
	if r.Connected() {
		return nil
	}

	wait := reconnectBackoff
	for attempt := 1; ; attempt++ {
		newConn, err := amqp.Dial(r.url)
		if err == nil {
			r.mu.Lock()
			oldConn := r.conn
			r.conn = newConn
			r.mu.Unlock()

			if oldConn != nil && !oldConn.IsClosed() {
				_ = oldConn.Close()
			}
			if attempt > 1 {
				r.logger.Info("rabbitmq reconnected", zap.Int("attempts", attempt))
			}
			return nil
		}

		r.logger.Warn("rabbitmq dial failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", wait),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq reconnect canceled: %w", ctx.Err())
		case <-time.After(wait):
		}

		wait = min(wait*2, maxBackoff)
	}
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		dlxExchangeName,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		DeadLetterQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", DeadLetterQueue, err)
	}

	if err := ch.QueueBind(DeadLetterQueue, WorkQueue, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", DeadLetterQueue, err)
	}

	if _, err := ch.QueueDeclare(
		WorkQueue,
		true,
		false,
		false,
		false,
		workQueueArgs(),
	); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", WorkQueue, err)
	}

	if _, err := ch.QueueDeclare(
		RetryQueue,
		true,
		false,
		false,
		false,
		retryQueueArgs(),
	); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", RetryQueue, err)
	}

	return nil
}

// Rejected work messages go to the DLX and land in DeadLetterQueue.
func workQueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": WorkQueue,
	}
}

// Expired retry messages are republished through the default exchange to WorkQueue.
func retryQueueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": WorkQueue,
	}
}

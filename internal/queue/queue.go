package queue

import (
	"context"
	"errors"
	"time"
)

const (
	// WorkQueue carries dispatch jobs consumed by workers.
	WorkQueue = "notifications.dispatch"
	// RetryQueue holds delayed jobs; expired messages dead-letter back into WorkQueue.
	RetryQueue = "notifications.dispatch.retry"
	// DeadLetterQueue receives jobs whose retry budget is exhausted or that were rejected.
	DeadLetterQueue = "dlq.notifications.dispatch"
)

// ErrDeadLetter tells the consumer to reject the delivery without requeue,
// routing it to DeadLetterQueue. Wrap it to keep the cause.
var ErrDeadLetter = errors.New("dead letter")

// Publisher publishes dispatch jobs.
type Publisher interface {
	Publish(ctx context.Context, msg DispatchMessage) error
	// PublishDelayed makes msg visible on WorkQueue after delay.
	PublishDelayed(ctx context.Context, msg DispatchMessage, delay time.Duration) error
	Close() error
}

// MessageHandler handles a consumed dispatch job. A nil error acks, an error
// wrapping ErrDeadLetter rejects, any other error requeues.
type MessageHandler func(ctx context.Context, msg DispatchMessage) error

// Consumer consumes dispatch jobs from WorkQueue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency  = 1
	defaultMaxRetries     = 3
	defaultBaseRetryDelay = 10 * time.Second
	maxRetryDelay         = 10 * time.Minute
	maxRetryJitterMillis  = 500
)

// DispatchRunner runs one dispatch pass.
type DispatchRunner interface {
	Dispatch(ctx context.Context, notificationID string) (Result, error)
}

// RetryPolicy bounds how often a notification is re-dispatched after
// transport failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseRetryDelay
	}
	return p
}

// WorkerService consumes dispatch jobs and owns the retry budget: the
// dispatcher only says a retry is needed, the worker decides when and whether.
type WorkerService struct {
	dispatcher  DispatchRunner
	consumer    queue.Consumer
	publisher   queue.Publisher
	policy      RetryPolicy
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	randIntn    func(n int) int
}

func NewWorkerService(
	dispatcher DispatchRunner,
	consumer queue.Consumer,
	publisher queue.Publisher,
	policy RetryPolicy,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if dispatcher == nil || consumer == nil || publisher == nil {
		return nil, fmt.Errorf("dispatcher, consumer and publisher are required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		dispatcher:  dispatcher,
		consumer:    consumer,
		publisher:   publisher,
		policy:      policy.withDefaults(),
		logger:      logger,
		concurrency: concurrency,
		randIntn:    rand.Intn,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs concurrency consumers on the work queue until ctx is canceled.
func (s *WorkerService) Start(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			if err := s.consumer.Consume(groupCtx, s.processMessage); err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DispatchMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("notificationId", msg.NotificationID),
		zap.Int("attempt", msg.Attempt),
	)

	s.metrics.IncWorkerInFlight()
	defer s.metrics.DecWorkerInFlight()

	result, err := s.dispatcher.Dispatch(ctx, msg.NotificationID)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	if !result.RetryRequested() {
		return nil
	}

	if msg.Attempt >= s.policy.MaxRetries {
		s.metrics.IncDeadLettered()
		logger.Error("retry budget exhausted", zap.Error(result.Reason))
		return fmt.Errorf("%w: retry budget of %d exhausted: %v", queue.ErrDeadLetter, s.policy.MaxRetries, result.Reason)
	}

	next := msg.Next()
	delay := s.computeRetryDelay(next.Attempt)
	if err := s.publisher.PublishDelayed(ctx, next, delay); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	s.metrics.IncRetryScheduled()
	logger.Info("retry scheduled",
		zap.Duration("delay", delay),
		zap.Error(result.Reason),
	)
	return nil
}

// computeRetryDelay doubles the base delay per retry, capped, plus jitter.
func (s *WorkerService) computeRetryDelay(retryNumber int) time.Duration {
	if retryNumber < 1 {
		retryNumber = 1
	}

	delay := s.policy.BaseDelay
	for i := 1; i < retryNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}
	delay = min(delay, maxRetryDelay)

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

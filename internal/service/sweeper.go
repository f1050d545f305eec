package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/queue"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval   = 30 * time.Second
	defaultSweepStaleAfter = 2 * time.Minute
	defaultSweepLimit      = 100
)

// PendingSweeper re-enqueues notifications that are still PENDING long after
// creation, e.g. because the enqueue after Create failed. Re-enqueueing is safe
// since dispatch never resends a delivered channel.
type PendingSweeper struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	staleAfter    time.Duration
	limit         int
	now           func() time.Time
}

func NewPendingSweeper(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	interval time.Duration,
	staleAfter time.Duration,
	logger *zap.Logger,
) (*PendingSweeper, error) {
	if notifications == nil || publisher == nil {
		return nil, fmt.Errorf("notification repository and publisher are required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultSweepStaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PendingSweeper{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		interval:      interval,
		staleAfter:    staleAfter,
		limit:         defaultSweepLimit,
		now:           time.Now,
	}, nil
}

func (s *PendingSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *PendingSweeper) Start(ctx context.Context) error {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("pending sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("pending sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass and returns how many notifications were re-enqueued.
func (s *PendingSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.notifications.GetStalePending(ctx, now.Add(-s.staleAfter), s.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stale pending notifications: %w", err)
	}

	enqueued := 0
	for i := range stale {
		notification := stale[i]
		msg := queue.DispatchMessage{
			NotificationID: notification.ID,
			CorrelationID:  uuid.NewString(),
		}

		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to re-enqueue pending notification",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}

		// Move it out of the stale window so the next tick does not pick it again.
		if err := s.notifications.MarkEnqueued(ctx, notification.ID, now); err != nil {
			s.logger.Error("failed to mark re-enqueued notification",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.metrics.AddSwept(enqueued)
		s.logger.Info("re-enqueued stale pending notifications", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/kursadbilgin/notification-fanout/internal/lock"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/ratelimit"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"github.com/kursadbilgin/notification-fanout/internal/sender"
	"go.uber.org/zap"
)

// Outcome is the result kind of one dispatch pass.
type Outcome string

const (
	// OutcomeCompleted means nothing is left to do for this pass, including the
	// case where the notification does not exist.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRetryRequested means a channel transport failed and the pass stopped
	// early. The notification stays PROCESSING until a later pass finishes it.
	OutcomeRetryRequested Outcome = "retry_requested"
)

// Result is returned by Dispatch. Reason is set when a retry is requested and
// wraps domain.ErrTransportFailure.
type Result struct {
	Outcome Outcome
	Reason  error
}

func (r Result) RetryRequested() bool {
	return r.Outcome == OutcomeRetryRequested
}

// SenderResolver maps a channel to its sender.
type SenderResolver interface {
	Resolve(channel domain.Channel) (sender.Sender, error)
}

// Dispatcher runs the dispatch procedure for one notification. It is safe to
// invoke repeatedly: channels that already succeeded are never sent again.
type Dispatcher struct {
	notifications repository.NotificationRepository
	deliveries    repository.DeliveryRepository
	senders       SenderResolver
	rateLimiter   ratelimit.RateLimiter
	locker        lock.Locker
	leaseTTL      time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewDispatcher builds a dispatcher. rateLimiter may be nil.
func NewDispatcher(
	notifications repository.NotificationRepository,
	deliveries repository.DeliveryRepository,
	senders SenderResolver,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if notifications == nil || deliveries == nil {
		return nil, fmt.Errorf("notification and delivery repositories are required")
	}
	if senders == nil {
		return nil, fmt.Errorf("sender resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifications: notifications,
		deliveries:    deliveries,
		senders:       senders,
		rateLimiter:   rateLimiter,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// SetLocker enables a per-notification lease so overlapping passes for the same
// notification do not send concurrently. A zero ttl disables it.
func (d *Dispatcher) SetLocker(locker lock.Locker, ttl time.Duration) {
	if d == nil {
		return
	}
	d.locker = locker
	d.leaseTTL = ttl
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Dispatch delivers every not-yet-successful channel of the notification and
// rolls the results up into its aggregate status. Storage and infrastructure
// failures are returned as errors; transport failures are reported through
// Result.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID string) (Result, error) {
	notificationID = strings.TrimSpace(notificationID)
	logger := observability.WithContextLogger(d.logger, ctx).With(zap.String("notificationId", notificationID))

	if d.locker != nil && d.leaseTTL > 0 {
		lease, err := d.locker.Acquire(ctx, "dispatch:"+notificationID, d.leaseTTL)
		if err != nil {
			return Result{}, fmt.Errorf("failed to acquire dispatch lease: %w", err)
		}
		if lease == nil {
			logger.Info("dispatch already in progress elsewhere, skipping")
			d.metrics.IncDispatch("skipped")
			return Result{Outcome: OutcomeCompleted}, nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release dispatch lease", zap.Error(err))
			}
		}()
	}

	result, err := d.dispatch(ctx, notificationID, logger)
	if err != nil {
		d.metrics.IncDispatch("error")
		return Result{}, err
	}
	d.metrics.IncDispatch(string(result.Outcome))
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, notificationID string, logger *zap.Logger) (Result, error) {
	notification, err := d.notifications.GetByID(ctx, notificationID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("notification not found, nothing to dispatch")
		return Result{Outcome: OutcomeCompleted}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to load notification: %w", err)
	}

	if err := d.notifications.UpdateStatus(ctx, notification.ID, domain.StatusProcessing); err != nil {
		return Result{}, fmt.Errorf("failed to mark notification processing: %w", err)
	}

	attempts, err := d.deliveries.ListByNotificationID(ctx, notification.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load delivery attempts: %w", err)
	}

	for i := range attempts {
		attempt := &attempts[i]
		if attempt.IsDelivered() {
			continue
		}

		s, err := d.senders.Resolve(attempt.Channel)
		if err != nil {
			if !errors.Is(err, domain.ErrUnsupportedChannel) {
				return Result{}, fmt.Errorf("failed to resolve sender: %w", err)
			}
			// Terminal for this channel; the remaining channels still go out.
			attempt.RecordFailure(d.now().UTC(), err)
			if err := d.record(ctx, attempt); err != nil {
				return Result{}, err
			}
			logger.Warn("delivery channel unsupported", zap.String("channel", attempt.Channel.String()))
			continue
		}

		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx, attempt.Channel); err != nil {
				return Result{}, fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		sendStart := d.now()
		sendErr := s.Send(ctx, *notification, *attempt)
		d.metrics.ObserveSendDuration(attempt.Channel.String(), d.now().Sub(sendStart))

		if sendErr == nil {
			attempt.RecordSuccess(d.now().UTC())
			if err := d.record(ctx, attempt); err != nil {
				return Result{}, err
			}
			continue
		}

		attempt.RecordFailure(d.now().UTC(), sendErr)
		if err := d.record(ctx, attempt); err != nil {
			return Result{}, err
		}

		logger.Warn("delivery failed, requesting retry",
			zap.String("channel", attempt.Channel.String()),
			zap.Int("attempts", attempt.Attempts),
			zap.Error(sendErr),
		)
		return Result{
			Outcome: OutcomeRetryRequested,
			Reason:  fmt.Errorf("%w: %s: %w", domain.ErrTransportFailure, attempt.Channel, sendErr),
		}, nil
	}

	status := domain.AggregateStatus(attempts)
	if err := d.notifications.UpdateAggregateStatus(ctx, notification.ID, status, d.now().UTC()); err != nil {
		return Result{}, fmt.Errorf("failed to update aggregate status: %w", err)
	}

	logger.Info("dispatch completed", zap.String("status", status.String()))
	return Result{Outcome: OutcomeCompleted}, nil
}

func (d *Dispatcher) record(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if err := d.deliveries.RecordOutcome(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record %s delivery outcome: %w", attempt.Channel, err)
	}
	d.metrics.IncDelivery(attempt.Channel.String(), attempt.Status.String())
	return nil
}

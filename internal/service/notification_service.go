package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/queue"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"go.uber.org/zap"
)

// CreateInput carries the fields of a new notification.
type CreateInput struct {
	UserID     *string
	Title      string
	Body       string
	Channels   []domain.Channel
	Recipients map[domain.Channel]string
}

// NotificationDetails is a notification together with its per-channel attempts.
type NotificationDetails struct {
	Notification domain.Notification
	Deliveries   []domain.DeliveryAttempt
}

type NotificationService struct {
	notifications repository.NotificationRepository
	deliveries    repository.DeliveryRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	newID         func() string
	now           func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil || deliveries == nil {
		return nil, fmt.Errorf("notification and delivery repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		deliveries:    deliveries,
		publisher:     publisher,
		logger:        logger,
		newID:         uuid.NewString,
		now:           time.Now,
	}, nil
}

// Create stores a PENDING notification with one PENDING attempt per channel.
// It does not enqueue; call Enqueue once the caller is ready to dispatch.
func (s *NotificationService) Create(ctx context.Context, input CreateInput) (*domain.Notification, error) {
	if len(input.Channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", domain.ErrValidation)
	}
	for _, channel := range input.Channels {
		if strings.TrimSpace(channel.String()) == "" {
			return nil, fmt.Errorf("%w: channel must not be empty", domain.ErrValidation)
		}
	}

	now := s.now().UTC()
	n := &domain.Notification{
		ID:         s.newID(),
		UserID:     normalizeOptionalString(input.UserID),
		Title:      strings.TrimSpace(input.Title),
		Body:       strings.TrimSpace(input.Body),
		Channels:   append([]domain.Channel(nil), input.Channels...),
		Recipients: input.Recipients,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	attempts := domain.NewDeliveryAttempts(n.ID, n.Channels, s.newID)
	for i := range attempts {
		attempts[i].CreatedAt = now
	}

	if err := s.notifications.CreateWithDeliveries(ctx, n, attempts); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	observability.WithContextLogger(s.logger, ctx).Info("notification created",
		zap.String("notificationId", n.ID),
		zap.Int("channels", len(n.Channels)),
	)
	return n, nil
}

// Enqueue publishes a dispatch job for an existing notification.
func (s *NotificationService) Enqueue(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	if s.publisher == nil {
		return fmt.Errorf("publisher is not configured")
	}

	if _, err := s.notifications.GetByID(ctx, id); err != nil {
		return err
	}

	ctx, correlationID := observability.EnsureCorrelationID(ctx)
	msg := queue.DispatchMessage{
		NotificationID: id,
		CorrelationID:  correlationID,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("failed to enqueue notification",
			zap.String("notificationId", id),
			zap.Error(err),
		)
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	return nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) GetDetails(ctx context.Context, id string) (*NotificationDetails, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	deliveries, err := s.deliveries.ListByNotificationID(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}

	return &NotificationDetails{Notification: *n, Deliveries: deliveries}, nil
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

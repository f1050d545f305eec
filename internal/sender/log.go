package sender

import (
	"context"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"go.uber.org/zap"
)

// LogSender writes the message to the logger instead of transmitting it.
// Used for local runs and dry-run deployments.
type LogSender struct {
	channel domain.Channel
	logger  *zap.Logger
}

func NewLogSender(channel domain.Channel, logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{channel: channel, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("dry-run delivery",
		zap.String("channel", s.channel.String()),
		zap.String("notificationId", notification.ID),
		zap.String("attemptId", attempt.ID),
		zap.String("recipient", notification.RecipientFor(s.channel)),
		zap.String("title", notification.Title),
	)
	return nil
}

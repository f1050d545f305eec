// Package sender holds the per-channel transmission side effects and the registry
// that maps a channel to its sender.
package sender

import (
	"context"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

const defaultSendTimeout = 10 * time.Second

// Sender performs the channel-specific transmission. Implementations never touch
// persisted state; a returned error only describes what went wrong.
type Sender interface {
	Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error

func (f SenderFunc) Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error {
	return f(ctx, notification, attempt)
}

func plainText(n domain.Notification) string {
	title := strings.TrimSpace(n.Title)
	body := strings.TrimSpace(n.Body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	}
	return title + "\n" + body
}

package sender

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/mrz1836/postmark"
)

const emailTag = "notification"

// EmailConfig holds Postmark credentials and the sender identity.
type EmailConfig struct {
	ServerToken  string
	AccountToken string
	From         string
}

// EmailSender delivers notifications through Postmark.
type EmailSender struct {
	client *postmark.Client
	from   string
}

func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	if strings.TrimSpace(cfg.ServerToken) == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	return NewEmailSenderWithClient(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg.From)
}

func NewEmailSenderWithClient(client *postmark.Client, from string) (*EmailSender, error) {
	if client == nil {
		return nil, fmt.Errorf("postmark client is required")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &EmailSender{client: client, from: from}, nil
}

func (s *EmailSender) Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("email sender is not initialized")
	}

	to := notification.RecipientFor(domain.ChannelEmail)
	if to == "" {
		return &SendError{Channel: domain.ChannelEmail, Message: "recipient is empty"}
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       to,
		Subject:  strings.TrimSpace(notification.Title),
		TextBody: notification.Body,
		Tag:      emailTag,
	})
	if err != nil {
		return &SendError{
			Channel: domain.ChannelEmail,
			Message: "postmark request failed",
			Cause:   err,
		}
	}
	if resp.ErrorCode > 0 {
		return &SendError{
			Channel: domain.ChannelEmail,
			Message: fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message),
		}
	}

	return nil
}

package sender

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

type smsGatewayRequest struct {
	To             string `json:"to"`
	Channel        string `json:"channel"`
	Content        string `json:"content"`
	NotificationID string `json:"notificationId"`
	AttemptID      string `json:"attemptId"`
}

// SMSSender posts messages to an HTTP SMS gateway.
type SMSSender struct {
	client   *resty.Client
	endpoint string
}

func NewSMSSender(endpoint string) (*SMSSender, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewSMSSenderWithClient(endpoint, client)
}

func NewSMSSenderWithClient(endpoint string, client *resty.Client) (*SMSSender, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid sms gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	// Retries belong to the dispatch worker, never to the transport.
	client.SetRetryCount(0)

	return &SMSSender{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (s *SMSSender) Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("sms sender is not initialized")
	}

	to := notification.RecipientFor(domain.ChannelSMS)
	if to == "" {
		return &SendError{Channel: domain.ChannelSMS, Message: "recipient is empty"}
	}

	reqBody := smsGatewayRequest{
		To:             to,
		Channel:        "sms",
		Content:        plainText(notification),
		NotificationID: notification.ID,
		AttemptID:      attempt.ID,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", attempt.ID).
		SetBody(reqBody).
		Post(s.endpoint)
	if err != nil {
		return &SendError{
			Channel: domain.ChannelSMS,
			Message: "gateway request failed",
			Cause:   requestError(err, ""),
		}
	}
	if response == nil {
		return &SendError{Channel: domain.ChannelSMS, Message: "gateway returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &SendError{
		Channel:    domain.ChannelSMS,
		StatusCode: statusCode,
		Message:    statusErrorMessage(statusCode, response.String()),
	}
}

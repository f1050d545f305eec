package sender

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

const DefaultTelegramAPIURL = "https://api.telegram.org"

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramSender delivers notifications as chat-bot messages through the Telegram Bot API.
type TelegramSender struct {
	client   *resty.Client
	apiURL   string
	botToken string
}

func NewTelegramSender(apiURL, botToken string) (*TelegramSender, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)

	return NewTelegramSenderWithClient(apiURL, botToken, client)
}

func NewTelegramSenderWithClient(apiURL, botToken string, client *resty.Client) (*TelegramSender, error) {
	botToken = strings.TrimSpace(botToken)
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &TelegramSender{
		client:   client,
		apiURL:   apiURL,
		botToken: botToken,
	}, nil
}

func (s *TelegramSender) Send(ctx context.Context, notification domain.Notification, attempt domain.DeliveryAttempt) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("telegram sender is not initialized")
	}

	chatID := notification.RecipientFor(domain.ChannelTelegram)
	if chatID == "" {
		return &SendError{Channel: domain.ChannelTelegram, Message: "chat id is empty"}
	}

	var result telegramResponse
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(telegramMessage{
			ChatID:    chatID,
			Text:      telegramText(notification),
			ParseMode: "HTML",
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken))
	if err != nil {
		return &SendError{
			Channel: domain.ChannelTelegram,
			Message: "bot api request failed",
			Cause:   requestError(err, s.botToken),
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices && result.OK {
		return nil
	}

	msg := strings.TrimSpace(result.Description)
	if msg == "" {
		msg = statusErrorMessage(statusCode, response.String())
	}
	return &SendError{
		Channel:    domain.ChannelTelegram,
		StatusCode: statusCode,
		Message:    msg,
	}
}

func telegramText(n domain.Notification) string {
	title := strings.TrimSpace(n.Title)
	body := html.EscapeString(strings.TrimSpace(n.Body))
	if title == "" {
		return body
	}
	return fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), body)
}

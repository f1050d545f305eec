package sender

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

// SendError describes a failed channel transmission.
type SendError struct {
	Channel    domain.Channel
	StatusCode int
	Message    string
	Cause      error
}

func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("%s send failed", strings.ToLower(e.Channel.String())))
	} else {
		parts = append(parts, "send failed")
	}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func statusErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	body = strings.TrimSpace(body)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, truncateUTF8(body, maxErrorBody))
}

const maxErrorBody = 512

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// requestError drops the request URL from transport errors and masks
// secret, so endpoint credentials never reach stored attempt messages.
func requestError(err error, secret string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s request: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	if secret != "" && strings.Contains(err.Error(), secret) {
		return errors.New(strings.ReplaceAll(err.Error(), secret, "<redacted>"))
	}
	return err
}

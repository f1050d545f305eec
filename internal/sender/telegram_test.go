package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSenderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody telegramMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer server.Close()

	s, err := NewTelegramSender(server.URL+"/", "123:abc")
	require.NoError(t, err)

	n := testNotification()
	n.Title = "A <b> title"
	n.Recipients = map[domain.Channel]string{domain.ChannelTelegram: "-100200"}

	err = s.Send(context.Background(), n, domain.DeliveryAttempt{ID: "a1", Channel: domain.ChannelTelegram})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100200", gotBody.ChatID)
	assert.Equal(t, "HTML", gotBody.ParseMode)
	assert.Equal(t, "<b>A &lt;b&gt; title</b>\nYour daily summary is ready.", gotBody.Text)
}

func TestTelegramSenderSendAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	s, err := NewTelegramSender(server.URL, "123:abc")
	require.NoError(t, err)

	err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"})
	require.Error(t, err)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusBadRequest, sendErr.StatusCode)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSenderSendNotOK(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer server.Close()

	s, err := NewTelegramSender(server.URL, "123:abc")
	require.NoError(t, err)

	err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was blocked")
}

func TestNewTelegramSenderDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewTelegramSender("", "")
	assert.Error(t, err)

	s, err := NewTelegramSender("", "token")
	require.NoError(t, err)
	assert.Equal(t, DefaultTelegramAPIURL, s.apiURL)
}

func TestTelegramSenderTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	apiURL := server.URL
	server.Close()

	const token = "123456:SECRET-BOT-TOKEN"
	s, err := NewTelegramSender(apiURL, token)
	require.NoError(t, err)

	err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"})
	require.Error(t, err)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.NotContains(t, err.Error(), token)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "bot api request failed")
}

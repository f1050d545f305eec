package sender

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() domain.Notification {
	userID := "42"
	return domain.Notification{
		ID:         "n1",
		UserID:     &userID,
		Title:      "Daily report",
		Body:       "Your daily summary is ready.",
		Channels:   []domain.Channel{domain.ChannelSMS},
		Recipients: map[domain.Channel]string{domain.ChannelSMS: "+905551112233"},
	}
}

func TestSMSSenderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody smsGatewayRequest
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	s, err := NewSMSSender(server.URL)
	require.NoError(t, err)

	err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1", Channel: domain.ChannelSMS})
	require.NoError(t, err)

	assert.Equal(t, "+905551112233", gotBody.To)
	assert.Equal(t, "sms", gotBody.Channel)
	assert.Equal(t, "Daily report\nYour daily summary is ready.", gotBody.Content)
	assert.Equal(t, "n1", gotBody.NotificationID)
	assert.Equal(t, "a1", gotKey)
}

func TestSMSSenderSendNonSuccessStatus(t *testing.T) {
	t.Parallel()

	for _, statusCode := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		statusCode := statusCode
		t.Run(http.StatusText(statusCode), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(statusCode)
				_, _ = w.Write([]byte("gateway failed"))
			}))
			defer server.Close()

			s, err := NewSMSSender(server.URL)
			require.NoError(t, err)

			err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"})
			require.Error(t, err)

			var sendErr *SendError
			require.True(t, errors.As(err, &sendErr))
			assert.Equal(t, statusCode, sendErr.StatusCode)
			assert.Equal(t, domain.ChannelSMS, sendErr.Channel)
			assert.Contains(t, err.Error(), "gateway failed")
		})
	}
}

func TestSMSSenderSendTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	s, err := NewSMSSenderWithClient(server.URL, client)
	require.NoError(t, err)

	err = s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"})
	require.Error(t, err)

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.NotNil(t, sendErr.Cause)
}

func TestSMSSenderSendEmptyRecipient(t *testing.T) {
	t.Parallel()

	s, err := NewSMSSender("http://127.0.0.1:1/sms")
	require.NoError(t, err)

	err = s.Send(context.Background(), domain.Notification{ID: "n1", Title: "t"}, domain.DeliveryAttempt{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient is empty")
}

func TestNewSMSSenderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSMSSender("")
	assert.Error(t, err)

	_, err = NewSMSSender("not a url")
	assert.Error(t, err)

	_, err = NewSMSSenderWithClient("http://localhost", nil)
	assert.Error(t, err)
}

package sender

import (
	"context"
	"testing"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func noopSender() Sender {
	return SenderFunc(func(ctx context.Context, n domain.Notification, a domain.DeliveryAttempt) error {
		return nil
	})
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(domain.ChannelSMS, noopSender()))
	require.NoError(t, r.Register(domain.ChannelEmail, noopSender()))

	s, err := r.Resolve(domain.ChannelSMS)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = r.Resolve(domain.Channel("unknown"))
	require.ErrorIs(t, err, domain.ErrUnsupportedChannel)
	assert.Contains(t, err.Error(), "unknown")

	assert.Equal(t, []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, r.Channels())
}

func TestRegistryRegisterRejectsDuplicatesAndNil(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(domain.ChannelTelegram, noopSender()))

	err := r.Register(domain.ChannelTelegram, noopSender())
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Error(t, r.Register(domain.ChannelSMS, nil))
	assert.ErrorIs(t, r.Register("", noopSender()), domain.ErrValidation)

	assert.Panics(t, func() { r.MustRegister(domain.ChannelTelegram, noopSender()) })
}

func TestNilRegistryResolve(t *testing.T) {
	t.Parallel()

	var r *Registry
	_, err := r.Resolve(domain.ChannelSMS)
	assert.ErrorIs(t, err, domain.ErrUnsupportedChannel)
}

func TestLogSenderSend(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	s := NewLogSender(domain.ChannelSMS, zap.New(core))

	require.NoError(t, s.Send(context.Background(), testNotification(), domain.DeliveryAttempt{ID: "a1"}))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "+905551112233", entries[0].ContextMap()["recipient"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, testNotification(), domain.DeliveryAttempt{}), context.Canceled)
}

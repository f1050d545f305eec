package main

import (
	"testing"

	"github.com/kursadbilgin/notification-fanout/internal/config"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"go.uber.org/zap"
)

func TestBuildSenderRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Config
		want []domain.Channel
	}{
		{
			name: "nothing configured",
			cfg:  config.Config{},
			want: []domain.Channel{},
		},
		{
			name: "dry run registers every channel",
			cfg:  config.Config{DeliveryDryRun: true},
			want: []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelTelegram},
		},
		{
			name: "only configured channels",
			cfg: config.Config{
				SMSGatewayURL:    "http://sms.local/send",
				TelegramBotToken: "bot-token",
				TelegramAPIURL:   "https://api.telegram.org",
			},
			want: []domain.Channel{domain.ChannelSMS, domain.ChannelTelegram},
		},
		{
			name: "email",
			cfg: config.Config{
				PostmarkServerToken: "server-token",
				EmailFrom:           "noreply@example.com",
			},
			want: []domain.Channel{domain.ChannelEmail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			registry, err := buildSenderRegistry(&cfg, zap.NewNop())
			if err != nil {
				t.Fatalf("buildSenderRegistry() error = %v", err)
			}

			got := registry.Channels()
			if len(got) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("channels = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBuildSenderRegistryRejectsIncompleteEmail(t *testing.T) {
	t.Parallel()

	cfg := config.Config{PostmarkServerToken: "server-token"}
	if _, err := buildSenderRegistry(&cfg, zap.NewNop()); err == nil {
		t.Fatal("buildSenderRegistry() error = nil, want missing sender address")
	}
}

package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// Channel senders. A channel whose settings are empty is not registered.
	SMSGatewayURL        string `env:"SMS_GATEWAY_URL"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	EmailFrom            string `env:"EMAIL_FROM"`
	TelegramBotToken     string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL       string `env:"TELEGRAM_API_URL,default=https://api.telegram.org"`
	DeliveryDryRun       bool   `env:"DELIVERY_DRY_RUN,default=false"`

	RateLimitPerSec         int `env:"RATE_LIMIT_PER_SEC,default=100"`
	RateLimitSMSPerSec      int `env:"RATE_LIMIT_SMS_PER_SEC,default=0"`
	RateLimitEmailPerSec    int `env:"RATE_LIMIT_EMAIL_PER_SEC,default=0"`
	RateLimitTelegramPerSec int `env:"RATE_LIMIT_TELEGRAM_PER_SEC,default=0"`
	WorkerConcurrency       int `env:"WORKER_CONCURRENCY,default=16"`

	DispatchMaxRetries   int `env:"DISPATCH_MAX_RETRIES,default=3"`
	DispatchRetryBaseSec int `env:"DISPATCH_RETRY_BASE_SEC,default=10"`
	DispatchLeaseSec     int `env:"DISPATCH_LEASE_SEC,default=60"`

	SweepIntervalSec   int `env:"SWEEP_INTERVAL_SEC,default=30"`
	SweepStaleAfterSec int `env:"SWEEP_STALE_AFTER_SEC,default=120"`

	APIPort int `env:"API_PORT,default=8080"`
	// WorkerPort serves /metrics and health probes from the worker; 0 disables it.
	WorkerPort int    `env:"WORKER_PORT,default=9090"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DispatchMaxRetries < 0 {
		return fmt.Errorf("DISPATCH_MAX_RETRIES must be >= 0")
	}
	if c.DispatchRetryBaseSec <= 0 {
		return fmt.Errorf("DISPATCH_RETRY_BASE_SEC must be > 0")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1")
	}
	if c.PostmarkServerToken != "" && c.EmailFrom == "" {
		return fmt.Errorf("EMAIL_FROM is required when POSTMARK_SERVER_TOKEN is set")
	}
	return nil
}

// ChannelRateLimits returns the per-channel overrides that are set.
func (c *Config) ChannelRateLimits() map[domain.Channel]int {
	limits := make(map[domain.Channel]int, 3)
	for channel, limit := range map[domain.Channel]int{
		domain.ChannelSMS:      c.RateLimitSMSPerSec,
		domain.ChannelEmail:    c.RateLimitEmailPerSec,
		domain.ChannelTelegram: c.RateLimitTelegramPerSec,
	} {
		if limit > 0 {
			limits[channel] = limit
		}
	}
	return limits
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.DispatchRetryBaseSec) * time.Second
}

// LeaseTTL is zero when the dispatch lease is disabled.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(max(c.DispatchLeaseSec, 0)) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c *Config) SweepStaleAfter() time.Duration {
	return time.Duration(c.SweepStaleAfterSec) * time.Second
}

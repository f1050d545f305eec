package ratelimit

import (
	"context"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

// RateLimiter controls send throughput per channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}

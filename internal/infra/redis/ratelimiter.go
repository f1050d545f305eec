package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/kursadbilgin/notification-fanout/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	backoffStep              = 10 * time.Millisecond
	backoffMax               = 50 * time.Millisecond
	windowSeconds            = 1
	rateLimitKeyPrefix       = "fanout:ratelimit"
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a distributed fixed-window per-second limiter shared by
// all worker processes. Each channel has its own window.
type RedisRateLimiter struct {
	client       *goredis.Client
	limitPerSec  int64
	channelLimit map[domain.Channel]int64
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	script       *goredis.Script
}

// NewRedisRateLimiter builds a limiter with a default budget and optional
// per-channel overrides. Non-positive values fall back to the default.
func NewRedisRateLimiter(client *goredis.Client, limitPerSec int, perChannel map[domain.Channel]int) (*RedisRateLimiter, error) {
	limiter, err := newRedisRateLimiter(
		client,
		int64(limitPerSec),
		time.Now,
		sleepWithContext,
	)
	if err != nil {
		return nil, err
	}
	for channel, limit := range perChannel {
		if limit > 0 {
			limiter.channelLimit[channel] = int64(limit)
		}
	}
	return limiter, nil
}

func newRedisRateLimiter(
	client *goredis.Client,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:       client,
		limitPerSec:  limitPerSec,
		channelLimit: make(map[domain.Channel]int64),
		now:          nowFn,
		sleep:        sleepFn,
		script:       allowScript,
	}, nil
}

func (r *RedisRateLimiter) limitFor(channel domain.Channel) int64 {
	if limit, ok := r.channelLimit[channel]; ok {
		return limit
	}
	return r.limitPerSec
}

func (r *RedisRateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(channel.String()))
	if normalized == "" {
		return false, fmt.Errorf("%w: channel is required", domain.ErrValidation)
	}

	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, normalized, r.now().UTC().Unix())
	result, err := r.script.Run(ctx, r.client, []string{key}, r.limitFor(channel), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until the channel window has room or ctx is done.
func (r *RedisRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-fanout/internal/lock"
	goredis "github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "fanout:lease"

// Delete only when the stored token is still ours, so an expired lease that
// was re-acquired elsewhere is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.Locker = (*RedisLocker)(nil)

// RedisLocker implements lock.Locker with SET NX PX.
type RedisLocker struct {
	client   *goredis.Client
	newToken func() string
}

func NewRedisLocker(client *goredis.Client) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLocker{client: client, newToken: uuid.NewString}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("lease key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive")
	}

	fullKey := fmt.Sprintf("%s:%s", leaseKeyPrefix, key)
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	return &redisLease{client: l.client, key: fullKey, token: token}, nil
}

type redisLease struct {
	client *goredis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

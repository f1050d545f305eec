package lock

import (
	"context"
	"time"
)

// Locker hands out short-lived exclusive leases keyed by name.
type Locker interface {
	// Acquire returns a lease when the key was free. A nil lease with a nil
	// error means someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}

package lock

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyHeld = errors.New("lock already held by this process")
var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a queue processing run across processes. Acquire does not
// wait for a contended lock: if another process holds the key, ErrNotAcquired
// is returned and the caller is expected to skip its run.
type Locker interface {
	// Acquire attempts to take the key for the given TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the key if this process owns it.
	Release(ctx context.Context, key string) error
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go/valkeylock"
)

// RedlockLocker delegates to valkeylock, which implements Redlock over a
// majority of keys and keeps extending a held lock in the background.
//
// The lock validity is fixed when the valkeylock.Locker is built, so the ttl
// passed to Acquire is ignored.
type RedlockLocker struct {
	locker valkeylock.Locker
}

func NewRedlockLocker(locker valkeylock.Locker) *RedlockLocker {
	return &RedlockLocker{locker: locker}
}

func (l *RedlockLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Lease, error) {
	lockCtx, cancel, err := l.locker.TryWithContext(ctx, key)
	if err != nil {
		if errors.Is(err, valkeylock.ErrNotLocked) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("failed to acquire redlock %s: %w", key, err)
	}
	return &redlockLease{ctx: lockCtx, cancel: cancel}, nil
}

// Close stops the underlying locker and its client.
func (l *RedlockLocker) Close() {
	l.locker.Close()
}

type redlockLease struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled by valkeylock if the lock is lost before release.
func (l *redlockLease) Context() context.Context {
	return l.ctx
}

func (l *redlockLease) Release(context.Context) error {
	lost := l.ctx.Err() != nil
	l.cancel()
	if lost {
		return ErrNotHeld
	}
	return nil
}

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is an in-process Locker. It gives the same semantics as the
// Valkey backend within one process and none across replicas.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	clock func() time.Time
}

type memoryHold struct {
	token    string
	expireAt time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryHold),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.expireAt) {
		return nil, ErrAlreadyLocked
	}

	token := uuid.NewString()
	l.held[key] = memoryHold{token: token, expireAt: now.Add(ttl)}
	return &memoryLease{ctx: ctx, locker: l, key: key, token: token}, nil
}

// IsHeld reports whether key is currently locked.
func (l *MemoryLocker) IsHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.held[key]
	return ok && l.clock().Before(h.expireAt)
}

type memoryLease struct {
	ctx    context.Context
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLease) Context() context.Context {
	return l.ctx
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	h, ok := l.locker.held[l.key]
	if !ok || h.token != l.token {
		return ErrNotHeld
	}
	delete(l.locker.held, l.key)
	if !l.locker.clock().Before(h.expireAt) {
		return ErrNotHeld
	}
	return nil
}

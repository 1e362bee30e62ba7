package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-wap-ingest/infrastructure/valkey"
	"github.com/google/uuid"
	valkeylib "github.com/valkey-io/valkey-go"
)

// Lua script for atomic lock release (only delete if token matches)
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// ValkeyLocker takes single-instance locks with SET NX PX and a random token.
type ValkeyLocker struct {
	client *valkey.Client
	owner  string
}

// NewValkeyLocker creates a locker. owner is prepended to every token so a
// stuck key can be traced back to the replica that set it.
func NewValkeyLocker(client *valkey.Client, owner string) *ValkeyLocker {
	return &ValkeyLocker{client: client, owner: owner}
}

func (l *ValkeyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	fullKey := l.client.Key(key)
	token := l.owner + ":" + uuid.NewString()
	inner := l.client.Inner()

	cmd := inner.B().Set().
		Key(fullKey).
		Value(token).
		Nx().
		PxMilliseconds(ttl.Milliseconds()).
		Build()

	if err := inner.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsNil(err) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return &valkeyLease{ctx: ctx, client: inner, key: fullKey, token: token}, nil
}

type valkeyLease struct {
	ctx    context.Context
	client valkeylib.Client
	key    string
	token  string
}

func (l *valkeyLease) Context() context.Context {
	return l.ctx
}

// Release deletes the key only if it still carries our token, so a lock that
// expired and was re-acquired by another replica is left alone.
func (l *valkeyLease) Release(ctx context.Context) error {
	cmd := l.client.B().Eval().
		Script(releaseLockScript).
		Numkeys(1).
		Key(l.key).
		Arg(l.token).
		Build()

	deleted, err := l.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

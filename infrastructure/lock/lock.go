// Package lock provides cluster-wide mutual exclusion for webhook processing.
//
// Acquisition never retries. A held lock means another replica is already
// working on the same delivery, and the duplicate is dropped instead of queued.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	keyNamespace = "lock:"

	// DefaultMessageTTL bounds how long a single message may hold its lock.
	DefaultMessageTTL = 5 * time.Second

	releaseTimeout = 2 * time.Second
)

// ErrAlreadyLocked is returned by Locker.Acquire when another holder owns the key.
var ErrAlreadyLocked = errors.New("lock already held")

// ErrNotHeld is returned by Lease.Release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Lease is a held lock.
type Lease interface {
	// Context is the context the protected work should run under. Backends
	// that can detect a lost lock cancel it.
	Context() context.Context
	Release(ctx context.Context) error
}

// Locker is a mutual-exclusion backend. Acquire must not block waiting for a
// held key: it returns ErrAlreadyLocked immediately.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Reason string

const (
	ReasonAlreadyLocked Reason = "already_locked"
	ReasonError         Reason = "error"
)

// Outcome reports what happened to the lock itself. Errors from the protected
// function are never folded into it.
type Outcome struct {
	Acquired bool
	Reason   Reason
	// Err is the infrastructure error when Reason is ReasonError.
	Err error
}

const (
	MessageReasonLocked = "Message is being processed by another instance"
	MessageReasonError  = "Failed to acquire message lock"
)

// MessageLockResult is what WithMessageLock reports to the event processor.
type MessageLockResult struct {
	Processed bool
	Reason    string
}

// Manager runs functions under a lock.
type Manager struct {
	locker     Locker
	messageTTL time.Duration
}

func NewManager(locker Locker, messageTTL time.Duration) *Manager {
	if messageTTL <= 0 {
		messageTTL = DefaultMessageTTL
	}
	return &Manager{locker: locker, messageTTL: messageTTL}
}

// MessageTTL returns the TTL used by WithMessageLock.
func (m *Manager) MessageTTL() time.Duration {
	return m.messageTTL
}

// WithLock runs fn while holding "lock:<key>". The error returned is fn's
// error, unmodified; lock acquisition problems are reported in Outcome only.
// The lock is released on every exit path, panics included.
func (m *Manager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (Outcome, error) {
	lockKey := keyNamespace + key

	lease, err := m.locker.Acquire(ctx, lockKey, ttl)
	if err != nil {
		if errors.Is(err, ErrAlreadyLocked) {
			logrus.WithField("key", lockKey).Debug("[LOCK] Already held, skipping")
			return Outcome{Reason: ReasonAlreadyLocked}, nil
		}
		logrus.WithError(err).WithField("key", lockKey).Error("[LOCK] Failed to acquire lock")
		return Outcome{Reason: ReasonError, Err: err}, nil
	}

	defer m.release(ctx, lockKey, lease)

	return Outcome{Acquired: true}, fn(lease.Context())
}

// WithMessageLock deduplicates processing of one provider message. Without a
// message id there is nothing to deduplicate on and fn runs unconditionally.
func (m *Manager) WithMessageLock(ctx context.Context, messageID string, fn func(ctx context.Context) error) (MessageLockResult, error) {
	if messageID == "" {
		return MessageLockResult{Processed: true}, fn(ctx)
	}

	outcome, err := m.WithLock(ctx, "msg:"+messageID, m.messageTTL, fn)
	if !outcome.Acquired {
		reason := MessageReasonLocked
		if outcome.Reason == ReasonError {
			reason = MessageReasonError
		}
		return MessageLockResult{Processed: false, Reason: reason}, nil
	}
	return MessageLockResult{Processed: true}, err
}

func (m *Manager) release(ctx context.Context, key string, lease Lease) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	// TTL expiry is the safety net, so a failed release is only worth a warning.
	if err := lease.Release(releaseCtx); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("[LOCK] Failed to release lock")
	}
}

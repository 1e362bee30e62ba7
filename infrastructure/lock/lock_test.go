package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLocker struct{ err error }

func (f failingLocker) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return nil, f.err
}

type stubLease struct {
	ctx        context.Context
	releaseErr error
	released   bool
}

func (s *stubLease) Context() context.Context { return s.ctx }

func (s *stubLease) Release(context.Context) error {
	s.released = true
	return s.releaseErr
}

type stubLocker struct{ lease *stubLease }

func (s stubLocker) Acquire(ctx context.Context, _ string, _ time.Duration) (Lease, error) {
	s.lease.ctx = ctx
	return s.lease, nil
}

func TestWithLock_RunsFunctionAndReleases(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, time.Second)

	called := false
	outcome, err := m.WithLock(context.Background(), "k", time.Second, func(ctx context.Context) error {
		called = true
		assert.True(t, locker.IsHeld("lock:k"))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, outcome.Acquired)
	assert.True(t, called)
	assert.False(t, locker.IsHeld("lock:k"))
}

func TestWithLock_ReturnsFunctionErrorUnchanged(t *testing.T) {
	m := NewManager(NewMemoryLocker(), time.Second)
	sentinel := errors.New("boom")

	outcome, err := m.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		return sentinel
	})

	assert.True(t, outcome.Acquired)
	assert.Same(t, sentinel, err)
}

func TestWithLock_AlreadyLocked(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, time.Second)

	_, err := locker.Acquire(context.Background(), "lock:k", time.Minute)
	require.NoError(t, err)

	called := false
	outcome, err := m.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, outcome.Acquired)
	assert.Equal(t, ReasonAlreadyLocked, outcome.Reason)
	assert.False(t, called)
}

func TestWithLock_BackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	m := NewManager(failingLocker{err: backendErr}, time.Second)

	outcome, err := m.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		t.Fatal("must not run")
		return nil
	})

	require.NoError(t, err)
	assert.False(t, outcome.Acquired)
	assert.Equal(t, ReasonError, outcome.Reason)
	assert.ErrorIs(t, outcome.Err, backendErr)
}

func TestWithLock_ReleaseFailureIsNotReturned(t *testing.T) {
	lease := &stubLease{releaseErr: errors.New("gone")}
	m := NewManager(stubLocker{lease: lease}, time.Second)

	outcome, err := m.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })

	require.NoError(t, err)
	assert.True(t, outcome.Acquired)
	assert.True(t, lease.released)
}

func TestWithLock_ReleasesOnPanic(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, time.Second)

	assert.Panics(t, func() {
		_, _ = m.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
			panic("handler exploded")
		})
	})
	assert.False(t, locker.IsHeld("lock:k"))
}

func TestWithMessageLock(t *testing.T) {
	t.Run("processes when free", func(t *testing.T) {
		m := NewManager(NewMemoryLocker(), 0)
		assert.Equal(t, DefaultMessageTTL, m.MessageTTL())

		res, err := m.WithMessageLock(context.Background(), "wamid.1", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.True(t, res.Processed)
		assert.Empty(t, res.Reason)
	})

	t.Run("reports contention", func(t *testing.T) {
		locker := NewMemoryLocker()
		m := NewManager(locker, time.Second)
		_, err := locker.Acquire(context.Background(), "lock:msg:wamid.1", time.Minute)
		require.NoError(t, err)

		res, err := m.WithMessageLock(context.Background(), "wamid.1", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.False(t, res.Processed)
		assert.Equal(t, MessageReasonLocked, res.Reason)
	})

	t.Run("reports backend failure", func(t *testing.T) {
		m := NewManager(failingLocker{err: errors.New("down")}, time.Second)

		res, err := m.WithMessageLock(context.Background(), "wamid.1", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.False(t, res.Processed)
		assert.Equal(t, MessageReasonError, res.Reason)
	})

	t.Run("propagates handler error", func(t *testing.T) {
		m := NewManager(NewMemoryLocker(), time.Second)
		sentinel := errors.New("db down")

		res, err := m.WithMessageLock(context.Background(), "wamid.1", func(context.Context) error { return sentinel })
		assert.True(t, res.Processed)
		assert.Same(t, sentinel, err)
	})

	t.Run("runs without id", func(t *testing.T) {
		m := NewManager(failingLocker{err: errors.New("down")}, time.Second)
		called := false

		res, err := m.WithMessageLock(context.Background(), "", func(context.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, res.Processed)
		assert.True(t, called)
	})
}

func TestWithMessageLock_ConcurrentDeliveriesRunOnce(t *testing.T) {
	m := NewManager(NewMemoryLocker(), time.Second)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var runs int
	var mu sync.Mutex

	first := make(chan MessageLockResult, 1)
	go func() {
		res, _ := m.WithMessageLock(context.Background(), "wamid.X", func(context.Context) error {
			mu.Lock()
			runs++
			mu.Unlock()
			close(entered)
			<-proceed
			return nil
		})
		first <- res
	}()

	<-entered
	second, err := m.WithMessageLock(context.Background(), "wamid.X", func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})
	close(proceed)

	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, MessageReasonLocked, second.Reason)
	assert.True(t, (<-first).Processed)
	assert.Equal(t, 1, runs)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.clock = func() time.Time { return now }

	lease, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrAlreadyLocked)

	now = now.Add(2 * time.Second)
	second, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, lease.Release(context.Background()), ErrNotHeld)
	assert.True(t, locker.IsHeld("k"))
	assert.NoError(t, second.Release(context.Background()))
	assert.False(t, locker.IsHeld("k"))
}

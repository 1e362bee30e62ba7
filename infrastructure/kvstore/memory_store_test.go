package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "contact:5511")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEx(ctx, "contact:5511", time.Minute, `{"id":"c1"}`))
	val, ok, err := s.Get(ctx, "contact:5511")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"c1"}`, val)

	require.NoError(t, s.Del(ctx, "contact:5511", "missing"))
	_, ok, _ = s.Get(ctx, "contact:5511")
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetEx(ctx, "k", 300*time.Second, "v"))
	assert.Equal(t, 1, s.Len())

	now = now.Add(299 * time.Second)
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

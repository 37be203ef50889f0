package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyGuardMarksOnce(t *testing.T) {
	guard, err := NewIdempotencyGuard(NewMemoryStore(), time.Hour, "stripe")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestIdempotencyGuardDeleteAllowsRedelivery(t *testing.T) {
	guard, err := NewIdempotencyGuard(NewMemoryStore(), time.Hour, "stripe")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.CheckAndMark(ctx, "evt_2")
	require.NoError(t, err)
	require.NoError(t, guard.Delete(ctx, "evt_2"))

	seen, err := guard.CheckAndMark(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, _ := store.SetNX(context.Background(), "k", "1", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.SetNX(context.Background(), "k", "1", time.Minute)
	assert.True(t, ok)
}

func TestNewIdempotencyGuardValidates(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "stripe")
	assert.Error(t, err)

	_, err = NewIdempotencyGuard(NewMemoryStore(), time.Hour, "")
	assert.Error(t, err)

	guard, err := NewIdempotencyGuard(NewMemoryStore(), time.Hour, "stripe")
	require.NoError(t, err)
	_, err = guard.CheckAndMark(context.Background(), "")
	assert.Error(t, err)
}

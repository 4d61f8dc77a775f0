package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMemory(maxFails int) (*Memory, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemory(time.Minute, maxFails, 10*time.Minute)
	l.now = c.now
	return l, c
}

func TestMemory_BlocksAtThreshold(t *testing.T) {
	l, c := newTestMemory(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "x")
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := l.Failure(ctx, "x")
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	ok, wait, err := l.Allow(ctx, "x")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, wait)

	ok, _, _ = l.Allow(ctx, "y")
	require.True(t, ok, "other callers unaffected")

	c.t = c.t.Add(11 * time.Minute)
	ok, _, _ = l.Allow(ctx, "x")
	require.True(t, ok)
}

func TestMemory_WindowResets(t *testing.T) {
	l, c := newTestMemory(2)
	ctx := context.Background()

	blocked, _, _ := l.Failure(ctx, "x")
	require.False(t, blocked)
	c.t = c.t.Add(2 * time.Minute)
	blocked, _, _ = l.Failure(ctx, "x")
	require.False(t, blocked, "first failure fell out of the window")
}

func TestMemory_SuccessResets(t *testing.T) {
	l, _ := newTestMemory(2)
	ctx := context.Background()

	_, _, _ = l.Failure(ctx, "x")
	require.NoError(t, l.Success(ctx, "x"))
	blocked, _, _ := l.Failure(ctx, "x")
	require.False(t, blocked)
}

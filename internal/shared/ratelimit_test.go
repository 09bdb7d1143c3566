package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int64) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLimiter(client, limit, time.Minute), mr
}

func TestLoginLimiterAllowsUnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
	}
	err := limiter.Allow(ctx, "alice", "10.0.0.1")
	require.True(t, errors.Is(err, ErrRateLimited))
}

func TestLoginLimiterKeysByUsernameAndIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
	require.Error(t, limiter.Allow(ctx, "alice", "10.0.0.1"))

	// Different user or different address has its own budget.
	require.NoError(t, limiter.Allow(ctx, "bob", "10.0.0.1"))
	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.2"))
}

func TestLoginLimiterResetClearsBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
	require.Error(t, limiter.Allow(ctx, "alice", "10.0.0.1"))

	limiter.Reset(ctx, "alice", "10.0.0.1")
	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
}

func TestLoginLimiterWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
	require.Error(t, limiter.Allow(ctx, "alice", "10.0.0.1"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, limiter.Allow(ctx, "alice", "10.0.0.1"))
}

func TestLoginLimiterFailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()

	require.NoError(t, limiter.Allow(context.Background(), "alice", "10.0.0.1"))
}

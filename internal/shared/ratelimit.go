package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles credential-guessing attempts with a fixed
// window counter in Redis, keyed by username and client IP.
type LoginLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewLoginLimiter constructs a LoginLimiter.
func NewLoginLimiter(client *redis.Client, limit int64, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt and reports ErrRateLimited once the window
// budget is exhausted. Redis outages fail open: a broken limiter must
// not lock every user out.
func (l *LoginLimiter) Allow(ctx context.Context, username, ip string) error {
	if l == nil || l.client == nil {
		return nil
	}
	key := loginAttemptKey(username, ip)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		_ = l.client.Expire(ctx, key, l.window).Err()
	}
	if count > l.limit {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username, ip string) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, loginAttemptKey(username, ip)).Err()
}

func loginAttemptKey(username, ip string) string {
	return fmt.Sprintf("login:attempts:%s:%s", username, ip)
}

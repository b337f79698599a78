package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptLimiter bounds how many times a single session may be driven
// through provider authentication. The counter lives next to the session
// record and expires with it.
type attemptLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	ttl         time.Duration
}

func newAttemptLimiter(redisClient redis.UniversalClient, prefix string, maxAttempts int, ttl time.Duration) *attemptLimiter {
	return &attemptLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: int64(maxAttempts),
		ttl:         ttl,
	}
}

func (l *attemptLimiter) key(sessionID string) string {
	return l.prefix + ":att:" + sessionID
}

// Record counts one authentication attempt for the session and reports
// ErrAttemptsExceeded once the limit has been passed.
func (l *attemptLimiter) Record(ctx context.Context, sessionID string) error {
	count, err := l.redis.Incr(ctx, l.key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(sessionID), l.ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if count > l.maxAttempts {
		return ErrAttemptsExceeded
	}
	return nil
}

// Reset clears the attempt counter, used when a challenge reaches a
// terminal state.
func (l *attemptLimiter) Reset(ctx context.Context, sessionID string) error {
	if err := l.redis.Del(ctx, l.key(sessionID)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

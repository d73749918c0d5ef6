package authstack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowLimiter counts events per subject in a fixed Redis window. The
// first increment in a window arms the expiry, so an idle subject costs
// nothing after the window closes.
type fixedWindowLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func (l *fixedWindowLimiter) key(subject string) string {
	return l.prefix + ":" + strings.ToLower(subject)
}

// Allow records one event for subject and reports whether it fits inside
// the current window.
func (l *fixedWindowLimiter) Allow(ctx context.Context, subject string) (bool, error) {
	key := l.key(subject)

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return n <= int64(l.limit), nil
}

// Reset clears the window for subject.
func (l *fixedWindowLimiter) Reset(ctx context.Context, subject string) error {
	if err := l.rdb.Del(ctx, l.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

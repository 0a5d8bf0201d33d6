package counterstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notifrelay/internal/domain/entity"
)

// fixedWindow increments the window counter and sets its expiry on first use.
// Returns the count after increment; callers compare against the limit.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RateLimiter is a fixed-window per-channel throttle shared by all worker
// processes through Redis. It is a cooperative throttle, not backpressure:
// a denied permit is a retryable condition for the delivery job.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

// NewRateLimiter allows at most limit permits per channel per window.
func NewRateLimiter(rdb *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window}
}

// Allow reports whether the channel has a permit left in the current window.
// It never blocks; denial resolves at the next window boundary.
func (l *RateLimiter) Allow(ctx context.Context, channel entity.Channel) (bool, error) {
	windowStart := time.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("rate_limit:%s:%d", channel, windowStart)

	count, err := fixedWindow.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("Allow: %w", err)
	}
	return count <= l.limit, nil
}

package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window INCR with TTL set on first hit in the window.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
    return 0
end
return 1
`

// RateLimiter bounds webhook ingest per source key (IP or user) using a
// Redis fixed window. A nil Redis client disables limiting, which is fine
// for a single-instance ingestor behind a trusted provider.
type RateLimiter struct {
	client *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit events per window per key.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether one more event from key fits in the current window.
// Redis errors fail open: a broken limiter must not drop provider events.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.client == nil {
		return true
	}
	res, err := rl.script.Run(ctx, rl.client,
		[]string{fmt.Sprintf("webhook:rate:%s", key)},
		int(rl.window.Seconds()), rl.limit,
	).Int()
	if err != nil {
		return true
	}
	return res == 1
}

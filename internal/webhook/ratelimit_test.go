package webhook_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/questspace/digest-service/internal/webhook"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := webhook.NewRateLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow(ctx, "1.2.3.4") {
		t.Fatal("request over the limit must be denied")
	}

	// A different key has its own window.
	if !rl.Allow(ctx, "5.6.7.8") {
		t.Fatal("distinct keys must not share a window")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := webhook.NewRateLimiter(client, 1, time.Minute)
	ctx := context.Background()

	if !rl.Allow(ctx, "k") {
		t.Fatal("first request must pass")
	}
	if rl.Allow(ctx, "k") {
		t.Fatal("second request must be denied")
	}

	mr.FastForward(61 * time.Second)
	if !rl.Allow(ctx, "k") {
		t.Fatal("window expiry must reset the counter")
	}
}

func TestRateLimiterNilClientFailsOpen(t *testing.T) {
	rl := webhook.NewRateLimiter(nil, 1, time.Minute)
	for i := 0; i < 5; i++ {
		if !rl.Allow(context.Background(), "k") {
			t.Fatal("nil client must fail open")
		}
	}
}

package ratelimit

import (
	"io"
	"log/slog"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

func TestRedisLimiterFailsOpenAndTripsBreaker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	rl := newRedis(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Close()

	for i := 0; i < 6; i++ {
		if d := rl.Allow("email:bob@acme.com", 1, time.Minute); !d.Allowed {
			t.Fatalf("expected attempt %d to be allowed while redis is unreachable", i+1)
		}
	}
	if state := rl.breaker.State(); state != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open, got %s", state)
	}
}

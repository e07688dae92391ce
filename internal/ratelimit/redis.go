package ratelimit

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

type redisLimiter struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis constructs a limiter shared across processes through Redis. Calls
// go through a circuit breaker; while Redis is failing, attempts are allowed.
func NewRedis(addr, password string, db int, logger *slog.Logger) (Limiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newRedis(client, logger), nil
}

func newRedis(client *redis.Client, logger *slog.Logger) *redisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "invite-ratelimit-redis",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &redisLimiter{
		client:  client,
		breaker: breaker,
		logger:  logger,
		prefix:  "taskflow:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *redisLimiter) Allow(key string, limit int, span time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if span <= 0 {
		span = time.Minute
	}
	result, err := rl.breaker.Execute(func() (interface{}, error) {
		return rl.count(key, span)
	})
	if err != nil {
		rl.logger.Error("redis rate limiter error", "op", "allow", "error", err)
		return Decision{Allowed: true}
	}
	w := result.(window)
	return Decision{
		Allowed:   w.count <= limit,
		Count:     w.count,
		WindowEnd: w.end,
	}
}

func (rl *redisLimiter) count(key string, span time.Duration) (window, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return window{}, err
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, span).Err(); err != nil {
			rl.logger.Error("redis rate limiter error", "op", "expire", "error", err)
		}
	}
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = span
	}
	return window{count: int(counter), end: time.Now().Add(ttl)}, nil
}

func (rl *redisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

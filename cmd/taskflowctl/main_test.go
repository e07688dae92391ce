package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/splax/taskflow/pkg/config"
)

func TestOpenLimiterWarnsWithoutRedis(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	limiter := openLimiter(config.EngineConfig{}, log)
	defer limiter.Close()

	if !strings.Contains(buf.String(), "invite throttling is effectively off") {
		t.Fatalf("expected a throttling warning, got %q", buf.String())
	}
	if d := limiter.Allow("invite:dev@acme.com", 1, time.Minute); !d.Allowed {
		t.Fatal("expected first attempt to be allowed")
	}
}

func TestOpenLimiterFallsBackWhenRedisUnreachable(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	limiter := openLimiter(config.EngineConfig{RateLimitRedisAddr: "127.0.0.1:1"}, log)
	defer limiter.Close()

	if !strings.Contains(buf.String(), "redis limiter unavailable") {
		t.Fatalf("expected redis fallback warning, got %q", buf.String())
	}
}

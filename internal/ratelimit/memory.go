package ratelimit

import (
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]window
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type window struct {
	count int
	end   time.Time
}

// NewMemory returns a process-local limiter. Expired windows are swept in the
// background until Close.
func NewMemory() Limiter {
	return newMemory(time.Now, true)
}

func newMemory(now func() time.Time, sweep bool) *memoryLimiter {
	rl := &memoryLimiter{
		entries: make(map[string]window),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	if sweep {
		go rl.sweepLoop()
	}
	return rl
}

func (rl *memoryLimiter) Allow(key string, limit int, span time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if span <= 0 {
		span = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || now.After(state.end) {
		state = window{count: 1, end: now.Add(span)}
		rl.entries[key] = state
		return Decision{Allowed: true, Count: state.count, WindowEnd: state.end}
	}
	if state.count >= limit {
		return Decision{Allowed: false, Count: state.count, WindowEnd: state.end}
	}
	state.count++
	rl.entries[key] = state
	return Decision{Allowed: true, Count: state.count, WindowEnd: state.end}
}

func (rl *memoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if now.After(state.end) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

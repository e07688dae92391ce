// Package ratelimit provides fixed-window attempt counters used to throttle
// invite validation.
package ratelimit

import "time"

// Limiter counts attempts per key inside a fixed window.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) Decision
	Close()
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

// Package ratelimit provides a keyed token-bucket rate limiter. The API
// server keys it by client IP to protect the credential endpoints; the
// metadata clients use plain rate.Limiter for outbound lookups.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle entries are swept so the per-IP map does not grow without bound.
const (
	sweepInterval = 5 * time.Minute
	maxIdle       = 15 * time.Minute
)

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent token bucket.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int

	done     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
	}

	go krl.sweep()

	return krl
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or the
// context is canceled.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, exists := krl.limiters[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Stop shuts down the sweep goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

// sweep periodically evicts keys that have been idle long enough for
// their bucket to have refilled anyway.
func (krl *KeyedRateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case now := <-ticker.C:
			krl.evictIdle(now)
		}
	}
}

func (krl *KeyedRateLimiter) evictIdle(now time.Time) {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	for key, e := range krl.limiters {
		if now.Sub(e.lastSeen) > maxIdle {
			delete(krl.limiters, key)
		}
	}
}

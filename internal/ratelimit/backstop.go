package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backstop is a per-IP in-process token bucket sitting in front of the
// Redis-backed sliding windows, grounded on the teacher's
// http/server.go use of golang.org/x/time/rate as the HTTP
// middleware's rate limiter. Its purpose is to absorb bursts locally
// so a single abusive client cannot force a Redis round trip per
// request; it is deliberately more permissive than the shared caps it
// fronts.
type Backstop struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	lastSeen map[string]time.Time
}

// NewBackstop builds a Backstop allowing rps requests per second per
// IP, with burst headroom.
func NewBackstop(rps float64, burst int) *Backstop {
	return &Backstop{
		limiters: map[string]*rate.Limiter{},
		lastSeen: map[string]time.Time{},
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether sourceIP may proceed under the local token
// bucket, lazily creating one on first sight.
func (b *Backstop) Allow(sourceIP string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	lim, ok := b.limiters[sourceIP]
	if !ok {
		lim = rate.NewLimiter(b.rps, b.burst)
		b.limiters[sourceIP] = lim
	}
	b.lastSeen[sourceIP] = time.Now()
	return lim.Allow()
}

// Sweep evicts limiters idle for longer than maxIdle, bounding the
// map's growth under a large number of distinct source IPs.
func (b *Backstop) Sweep(maxIdle time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, seen := range b.lastSeen {
		if seen.Before(cutoff) {
			delete(b.limiters, ip)
			delete(b.lastSeen, ip)
			removed++
		}
	}
	return removed
}

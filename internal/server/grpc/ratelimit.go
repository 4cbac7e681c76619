package grpc

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/pool"
	"golang.org/x/time/rate"
)

const (
	maxTrackedIdentities = 10_000
	limiterIdleTTL       = 10 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// rateLimiter keeps one token bucket per identity.
type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[pool.Identity]*limiterEntry
	now     func() time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		entries: make(map[pool.Identity]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether id may make another call now. A nil limiter allows
// everything.
func (r *rateLimiter) Allow(id pool.Identity) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.entries[id]
	if !ok {
		if len(r.entries) >= maxTrackedIdentities {
			r.sweep(now)
		}
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[id] = e
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}

func (r *rateLimiter) sweep(now time.Time) {
	for id, e := range r.entries {
		if now.Sub(e.seen) > limiterIdleTTL {
			delete(r.entries, id)
		}
	}
}

// Package ratelimit throttles inbound updates per user.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 512

// Limiter applies a token bucket per user and periodically evicts idle entries.
// A nil *Limiter allows everything.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu     sync.Mutex
	byUser map[int64]*entry
	hits   uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a per-user limiter; it returns nil (no limiting) when rps or
// burst is not positive.
func New(rps float64, burst int, idleTTL time.Duration) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byUser:  make(map[int64]*entry),
	}
}

// Allow reports whether the user may send one more update at now.
func (l *Limiter) Allow(userID int64, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byUser[userID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byUser[userID] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%sweepEvery == 0 {
		cutoff := now.Add(-l.idleTTL)
		for id, v := range l.byUser {
			if v.lastSeen.Before(cutoff) {
				delete(l.byUser, id)
			}
		}
	}

	return allowed
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUser)
}

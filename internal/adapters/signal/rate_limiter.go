package signal

import (
	"sync"
	"time"
)

const maxTrackedClients = 4096

// AcceptLimiter bounds connection attempts per client IP within a sliding
// window.
type AcceptLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewAcceptLimiter returns nil when limit is not positive; a nil limiter
// allows everything.
func NewAcceptLimiter(limit int, interval time.Duration) *AcceptLimiter {
	if limit <= 0 {
		return nil
	}
	return &AcceptLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *AcceptLimiter) Allow(ip string) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[ip]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(rl.history) > maxTrackedClients {
		rl.sweep(windowStart)
	}

	if len(fresh) >= rl.limit {
		rl.history[ip] = fresh
		return false
	}

	rl.history[ip] = append(fresh, now)
	return true
}

// sweep forgets clients with no attempt inside the window.
func (rl *AcceptLimiter) sweep(windowStart time.Time) {
	for client, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, client)
		}
	}
}

package commands

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterSweepThreshold = 1024

// userLimiter hands out one token bucket per user.
type userLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

func newUserLimiter(delay time.Duration) *userLimiter {
	return &userLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(delay),
	}
}

// Allow consumes a token for userID and reports whether one was available.
func (u *userLimiter) Allow(userID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	lim, ok := u.limiters[userID]
	if !ok {
		if len(u.limiters) >= limiterSweepThreshold {
			u.sweep()
		}
		lim = rate.NewLimiter(u.every, 1)
		u.limiters[userID] = lim
	}
	return lim.Allow()
}

// sweep drops buckets that are full again; they carry no state.
func (u *userLimiter) sweep() {
	for id, lim := range u.limiters {
		if lim.Tokens() >= 1 {
			delete(u.limiters, id)
		}
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	localMaxKeys = 10000
	localIdleTTL = 10 * time.Minute
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one x/time/rate limiter per key in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	rate    float64
	burst   int
	now     func() time.Time
}

func NewLocalLimiter(r float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*localEntry),
		rate:    r,
		burst:   burst,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (*Result, error) {
	if err := validate(key, l.rate, l.burst); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= localMaxKeys {
			l.evictIdle(now)
		}
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(l.rate), l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &Result{
			Allowed:    false,
			Limit:      l.burst,
			Remaining:  0,
			RetryAfter: delay,
		}, nil
	}

	return &Result{
		Allowed:   true,
		Limit:     l.burst,
		Remaining: int(entry.limiter.TokensAt(now)),
	}, nil
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	l.entries = lo.PickBy(l.entries, func(_ string, e *localEntry) bool {
		return now.Sub(e.lastSeen) < localIdleTTL
	})
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// LocalLimiter is an in-process Limiter backed by golang.org/x/time/rate
// token buckets, one per (user_handle, window). It is used when no Redis
// endpoint is configured; it does not coordinate across server
// instances, so spec §4.4's guarantees only hold within a single process.
type LocalLimiter struct {
	catalog *tier.Catalog
	mu      sync.Mutex
	buckets map[string]*userBuckets
	now     func() time.Time
}

type userBuckets struct {
	limiters map[Window]*rate.Limiter
}

// NewLocal builds a LocalLimiter.
func NewLocal(catalog *tier.Catalog) *LocalLimiter {
	return &LocalLimiter{
		catalog: catalog,
		buckets: make(map[string]*userBuckets),
		now:     time.Now,
	}
}

func (l *LocalLimiter) bucketsFor(userHandle string, limits tier.Limits) *userBuckets {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[userHandle]
	if ok {
		return b
	}
	b = &userBuckets{limiters: make(map[Window]*rate.Limiter, 3)}
	b.limiters[WindowHour] = newBucket(limits.PerHour, windowDuration[WindowHour])
	b.limiters[WindowDay] = newBucket(limits.PerDay, windowDuration[WindowDay])
	b.limiters[WindowMonth] = newBucket(limits.PerMonth, windowDuration[WindowMonth])
	l.buckets[userHandle] = b
	return b
}

// newBucket builds a token bucket that refills to limit tokens once per
// duration, approximating a sliding window count with a burst cap.
func newBucket(limit int, duration time.Duration) *rate.Limiter {
	if limit == tier.Unlimited {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if limit <= 0 {
		return rate.NewLimiter(0, 0)
	}
	perSecond := rate.Limit(float64(limit) / duration.Seconds())
	return rate.NewLimiter(perSecond, limit)
}

// Allow implements Limiter. Windows are checked tightest-first; if a
// looser window (day, month) breaches after a tighter one already
// consumed a token, that token is not refunded. This is a known
// approximation of the spec's atomic-across-windows invariant, acceptable
// here because LocalLimiter only runs when no Redis endpoint is configured
// (otherwise RedisLimiter, which does roll back, is used).
func (l *LocalLimiter) Allow(_ context.Context, userHandle string, t tier.Tier) (Decision, error) {
	limits := l.catalog.Limits(t)
	b := l.bucketsFor(userHandle, limits)
	now := l.now()

	decision := Decision{
		Allowed:   true,
		Remaining: make(map[Window]int, len(windowOrder)),
		ResetAt:   make(map[Window]time.Time, len(windowOrder)),
	}

	for _, w := range windowOrder {
		lim := b.limiters[w]
		if !lim.AllowN(now, 1) {
			decision.Allowed = false
			decision.BreachedBy = w
			decision.Remaining[w] = 0
			decision.ResetAt[w] = now.Add(windowDuration[w])
			return decision, nil
		}
		decision.Remaining[w] = int(lim.Tokens())
		decision.ResetAt[w] = now.Add(windowDuration[w])
	}
	return decision, nil
}

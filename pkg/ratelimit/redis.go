package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// RedisLimiter implements Limiter with a sliding-window log per
// (user_handle, window) stored as a Redis sorted set: one member per
// accepted request, scored by its Unix-nanosecond timestamp. Checking a
// window counts members newer than (now - window duration); incrementing
// adds a new member and trims stale ones in the same pipeline.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	catalog *tier.Catalog
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewRedis builds a RedisLimiter. prefix namespaces keys (e.g. "fm:rate:").
func NewRedis(client *redis.Client, prefix string, catalog *tier.Catalog, log *zap.SugaredLogger) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, catalog: catalog, log: log, now: time.Now}
}

func (r *RedisLimiter) key(userHandle string, w Window) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, userHandle, w)
}

// Allow checks and, if permitted, records one request against userHandle's
// windows for t. Atomicity is per-window: each window's trim+count+add runs
// as one Redis pipeline, so a concurrent request sees either the full
// effect of this call or none of it for that window.
//
// On a Redis error, Allow fails closed (denies the request) since it
// cannot be sure the increment was durably recorded — spec §4.4 requires
// fail-closed on write so a degraded backend cannot be used to bypass
// limits entirely.
func (r *RedisLimiter) Allow(ctx context.Context, userHandle string, t tier.Tier) (Decision, error) {
	limits := r.catalog.Limits(t)
	limitFor := map[Window]int{
		WindowHour:  limits.PerHour,
		WindowDay:   limits.PerDay,
		WindowMonth: limits.PerMonth,
	}

	now := r.now()
	decision := Decision{
		Allowed:   true,
		Remaining: make(map[Window]int, len(windowOrder)),
		ResetAt:   make(map[Window]time.Time, len(windowOrder)),
	}

	added := make([]Window, 0, len(windowOrder))
	for _, w := range windowOrder {
		limit := limitFor[w]
		if limit == tier.Unlimited {
			decision.Remaining[w] = tier.Unlimited
			decision.ResetAt[w] = now.Add(windowDuration[w])
			continue
		}

		count, err := r.countAndAdd(ctx, userHandle, w, now)
		if err != nil {
			r.rollback(ctx, userHandle, added, now)
			return Decision{}, err
		}
		added = append(added, w)

		if count > limit {
			r.rollback(ctx, userHandle, added, now)
			decision.Allowed = false
			decision.BreachedBy = w
			decision.Remaining[w] = 0
			decision.ResetAt[w] = now.Add(windowDuration[w])
			return decision, nil
		}
		decision.Remaining[w] = limit - count
		decision.ResetAt[w] = now.Add(windowDuration[w])
	}
	return decision, nil
}

// countAndAdd trims entries older than the window, adds now's entry, and
// returns the post-add member count, all in one pipeline.
func (r *RedisLimiter) countAndAdd(ctx context.Context, userHandle string, w Window, now time.Time) (int, error) {
	key := r.key(userHandle, w)
	cutoff := now.Add(-windowDuration[w]).UnixNano()
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, windowDuration[w]+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

// rollback removes the member just added to each window in added, used
// when a looser window rejects the request after the tighter ones already
// recorded it (or when a later window's pipeline fails).
func (r *RedisLimiter) rollback(ctx context.Context, userHandle string, added []Window, now time.Time) {
	member := fmt.Sprintf("%d", now.UnixNano())
	for _, w := range added {
		if err := r.client.ZRem(ctx, r.key(userHandle, w), member).Err(); err != nil && r.log != nil {
			r.log.Warnw("rate limit rollback failed", "window", w, "error", err)
		}
	}
}

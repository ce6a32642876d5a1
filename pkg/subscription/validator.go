package subscription

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

func tierFromString(s string) tier.Tier {
	return tier.Tier(s)
}

// Validator is the SubscriptionValidator (spec §4.3): it checks a
// subscription key's syntax, consults a TTL-bounded cache, and falls back
// to the Registry on a cache miss.
type Validator struct {
	registry Registry
	cache    *cache
	log      *zap.SugaredLogger
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithRedis attaches a Redis-backed cache using client, with keys prefixed
// by prefix (e.g. "fm:sub:"). Without this option the Validator consults
// the Registry on every call.
func WithRedis(client *redis.Client, prefix string) Option {
	return func(v *Validator) {
		v.cache = newCache(client, prefix)
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New builds a Validator backed by registry.
func New(registry Registry, log *zap.SugaredLogger, opts ...Option) *Validator {
	v := &Validator{
		registry: registry,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate implements the full SubscriptionValidator.Validate algorithm
// (spec §4.3):
//  1. syntactic pre-check on the key pattern, short-circuiting the registry
//     entirely on malformed keys;
//  2. cache lookup keyed by (emailNormalized, subscriptionKey);
//  3. on a cache miss, a registry lookup, followed by a cache write whose
//     TTL depends on the outcome (positive vs. negative) — except
//     backend-unavailable outcomes, which are never cached so the next
//     request retries the registry (fail-open on registry unavailability).
func (v *Validator) Validate(ctx context.Context, emailNormalized, subscriptionKey string) (Result, error) {
	if !ValidKeySyntax(subscriptionKey) {
		return Result{Valid: false, Reason: ReasonMalformedKey, CachedAt: v.now()}, nil
	}

	if cached, err := v.cache.get(ctx, emailNormalized, subscriptionKey); err != nil {
		if v.log != nil {
			v.log.Warnw("subscription cache read failed, falling back to registry", "error", err)
		}
	} else if cached != nil {
		return *cached, nil
	}

	record, err := v.registry.Lookup(ctx, emailNormalized)
	if err != nil {
		result := Result{Valid: false, Reason: ReasonBackendUnavailable, CachedAt: v.now()}
		if cacheErr := v.cache.set(ctx, emailNormalized, subscriptionKey, result, NegativeTTL); cacheErr != nil && v.log != nil {
			v.log.Warnw("subscription cache write failed", "error", cacheErr)
		}
		return result, err
	}

	result := v.evaluate(record, subscriptionKey)
	ttl := NegativeTTL
	if result.Valid {
		ttl = PositiveTTL
	}
	if cacheErr := v.cache.set(ctx, emailNormalized, subscriptionKey, result, ttl); cacheErr != nil && v.log != nil {
		v.log.Warnw("subscription cache write failed", "error", cacheErr)
	}
	return result, nil
}

func (v *Validator) evaluate(record *Record, subscriptionKey string) Result {
	now := v.now()
	if record == nil {
		return Result{Valid: false, Reason: ReasonNotFound, CachedAt: now}
	}
	if record.Key != subscriptionKey {
		return Result{Valid: false, Reason: ReasonKeyMismatch, CachedAt: now}
	}
	if record.Status == StatusRevoked {
		return Result{Valid: false, Tier: record.Tier, Reason: ReasonRevoked, CachedAt: now}
	}
	if record.Status == StatusGrace {
		graceUntil := record.GraceUntil
		if graceUntil == nil {
			graceUntil = record.ExpiresAt
		}
		return Result{Valid: true, Tier: record.Tier, Reason: ReasonNone, ExpiresAt: record.ExpiresAt, GraceUntil: graceUntil, CachedAt: now}
	}
	if record.Status == StatusExpired {
		return Result{Valid: false, Tier: record.Tier, Reason: ReasonExpired, ExpiresAt: record.ExpiresAt, CachedAt: now}
	}
	if record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
		return Result{Valid: false, Tier: record.Tier, Reason: ReasonExpired, ExpiresAt: record.ExpiresAt, CachedAt: now}
	}
	return Result{Valid: true, Tier: record.Tier, Reason: ReasonNone, ExpiresAt: record.ExpiresAt, CachedAt: now}
}

package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLs for cached validation outcomes (spec §4.3 invariant 2). Valid
// results get PositiveTTL; every invalid result (not found, key mismatch,
// revoked, expired) gets the shorter NegativeTTL, so a newly-activated
// subscription is picked up reasonably quickly.
const (
	PositiveTTL = 5 * time.Minute
	NegativeTTL = 30 * time.Second
)

// cacheEntry is the JSON shape stored in Redis for one cached Result.
type cacheEntry struct {
	Valid      bool       `json:"valid"`
	Tier       string     `json:"tier"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	GraceUntil *time.Time `json:"grace_until,omitempty"`
	CachedAt   time.Time  `json:"cached_at"`
}

// cache wraps a redis.Client with the key-prefixing and TTL policy used by
// Validator. A nil *cache disables caching entirely (every call is a miss),
// which Validator uses when no Redis address is configured.
type cache struct {
	client *redis.Client
	prefix string
}

func newCache(client *redis.Client, prefix string) *cache {
	if client == nil {
		return nil
	}
	return &cache{client: client, prefix: prefix}
}

func (c *cache) key(emailNormalized, subscriptionKey string) string {
	return c.prefix + emailNormalized + ":" + subscriptionKey
}

// get returns the cached Result, or (nil, nil) on a clean cache miss.
// Errors talking to Redis are returned so the caller can fail open.
func (c *cache) get(ctx context.Context, emailNormalized, subscriptionKey string) (*Result, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, c.key(emailNormalized, subscriptionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &Result{
		Valid:      e.Valid,
		Tier:       tierFromString(e.Tier),
		Reason:     Reason(e.Reason),
		ExpiresAt:  e.ExpiresAt,
		GraceUntil: e.GraceUntil,
		CachedAt:   e.CachedAt,
	}, nil
}

// set stores a Result with ttl. Never caches ReasonBackendUnavailable (spec
// §4.3 invariant: registry outages must not be cached, so the next request
// retries the registry rather than replaying a stale failure).
func (c *cache) set(ctx context.Context, emailNormalized, subscriptionKey string, result Result, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if result.Reason == ReasonBackendUnavailable {
		return nil
	}
	e := cacheEntry{
		Valid:      result.Valid,
		Tier:       string(result.Tier),
		Reason:     string(result.Reason),
		ExpiresAt:  result.ExpiresAt,
		GraceUntil: result.GraceUntil,
		CachedAt:   result.CachedAt,
	}
	raw, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(emailNormalized, subscriptionKey), raw, ttl).Err()
}

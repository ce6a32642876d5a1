package ratelimit

import (
	"context"

	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// FailOpenLimiter wraps a primary Limiter (normally RedisLimiter) and
// converts backend errors into an allowed, degraded decision instead of
// propagating the error. Spec §4.4 distinguishes write failures (the
// increment itself, which RedisLimiter already fails closed on by
// returning an error) from read/availability failures at the transport
// level (the backend is unreachable at all) — this wrapper implements the
// latter: when Primary.Allow returns an error, the request is let through
// so a Redis outage does not take down the whole service, but the
// decision is marked DegradedRead so callers can log/alert on it.
type FailOpenLimiter struct {
	Primary Limiter
	log     *zap.SugaredLogger
}

// NewFailOpen wraps primary with fail-open-on-error behavior.
func NewFailOpen(primary Limiter, log *zap.SugaredLogger) *FailOpenLimiter {
	return &FailOpenLimiter{Primary: primary, log: log}
}

// Allow implements Limiter.
func (f *FailOpenLimiter) Allow(ctx context.Context, userHandle string, t tier.Tier) (Decision, error) {
	decision, err := f.Primary.Allow(ctx, userHandle, t)
	if err == nil {
		return decision, nil
	}
	if f.log != nil {
		f.log.Warnw("rate limit backend unavailable, failing open", "user_handle", userHandle, "error", err)
	}
	return Decision{Allowed: true, DegradedRead: true}, nil
}

package ratelimit

import (
	"context"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// Limiter decides whether one more request from userHandle at tier t is
// allowed, recording it if so.
type Limiter interface {
	Allow(ctx context.Context, userHandle string, t tier.Tier) (Decision, error)
}

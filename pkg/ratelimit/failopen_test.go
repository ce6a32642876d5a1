package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

type erroringLimiter struct {
	err error
}

func (e *erroringLimiter) Allow(context.Context, string, tier.Tier) (Decision, error) {
	return Decision{}, e.err
}

func TestFailOpenLimiter_AllowsOnBackendError(t *testing.T) {
	t.Parallel()
	l := NewFailOpen(&erroringLimiter{err: errors.New("backend down")}, nil)

	d, err := l.Allow(context.Background(), "user-a", tier.Free)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.DegradedRead)
}

func TestFailOpenLimiter_PassesThroughOnSuccess(t *testing.T) {
	t.Parallel()
	l := NewFailOpen(NewLocal(tier.New()), nil)

	d, err := l.Allow(context.Background(), "user-b", tier.Free)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.DegradedRead)
}

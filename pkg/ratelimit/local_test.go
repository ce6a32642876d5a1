package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

func TestLocalLimiter_RejectsOverHourLimit(t *testing.T) {
	t.Parallel()
	l := NewLocal(tier.New())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "user-a", tier.Free)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "user-a", tier.Free)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, WindowHour, d.BreachedBy)
}

func TestLocalLimiter_EnterpriseUnlimited(t *testing.T) {
	t.Parallel()
	l := NewLocal(tier.New())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		d, err := l.Allow(ctx, "user-ent", tier.Enterprise)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestLocalLimiter_IndependentUsers(t *testing.T) {
	t.Parallel()
	l := NewLocal(tier.New())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "user-b", tier.Free)
		require.NoError(t, err)
	}
	d, err := l.Allow(ctx, "user-c", tier.Free)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

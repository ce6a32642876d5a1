package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedis(client, "test:rate:", tier.New(), nil), mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	t.Parallel()
	l, mr := newTestRedisLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "user-a", tier.Free)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
	}
}

func TestRedisLimiter_RejectsOverHourLimit(t *testing.T) {
	t.Parallel()
	l, mr := newTestRedisLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	// Free tier allows 5/hour.
	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "user-b", tier.Free)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "user-b", tier.Free)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, WindowHour, d.BreachedBy)
}

func TestRedisLimiter_RejectionDoesNotConsumeLooserWindows(t *testing.T) {
	t.Parallel()
	l, mr := newTestRedisLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "user-c", tier.Free)
		require.NoError(t, err)
	}
	_, err := l.Allow(ctx, "user-c", tier.Free)
	require.NoError(t, err)

	dayCount, err := mr.ZCard("test:rate:user-c:day")
	require.NoError(t, err)
	assert.Equal(t, 5, dayCount)
}

func TestRedisLimiter_EnterpriseUnlimited(t *testing.T) {
	t.Parallel()
	l, mr := newTestRedisLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		d, err := l.Allow(ctx, "user-ent", tier.Enterprise)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestRedisLimiter_SeparateUsersIndependent(t *testing.T) {
	t.Parallel()
	l, mr := newTestRedisLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "user-d", tier.Free)
		require.NoError(t, err)
	}
	d, err := l.Allow(ctx, "user-e", tier.Free)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

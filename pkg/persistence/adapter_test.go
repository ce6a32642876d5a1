package persistence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/identity"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/ratelimit"
	"github.com/fortunamind/persistent-mcp/pkg/storage/memory"
	"github.com/fortunamind/persistent-mcp/pkg/subscription"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
	"github.com/fortunamind/persistent-mcp/pkg/tools"
)

func newTestAdapter(t *testing.T, records ...*subscription.Record) *Adapter {
	t.Helper()
	ctx := context.Background()
	backend, err := memory.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, backend.Migrate(ctx))
	t.Cleanup(func() { _ = backend.Close() })

	registry := tools.NewRegistry(tier.New(), nil)
	tools.RegisterBuiltins(registry)

	validator := subscription.New(subscription.NewStaticRegistry(records...), nil)
	limiter := ratelimit.NewLocal(tier.New())

	return New(identity.New(""), validator, limiter, registry, backend, nil)
}

func TestHandleToolsCall_HappyPath(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, &subscription.Record{
		EmailNormalized: "user@example.com",
		Key:             "fm_sub_abcdefgh",
		Tier:            tier.Free,
		Status:          subscription.StatusActive,
	})

	raw := auth.RawCredentials{Email: "user@example.com", SubscriptionKey: "fm_sub_abcdefgh"}
	params := protocol.ToolsCallParams{Name: "journal_create", Arguments: json.RawMessage(`{"content":"hi"}`)}

	result, err := a.HandleToolsCall(context.Background(), raw, params, "req-1")
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleToolsCall_MissingCredentials(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t)

	_, err := a.HandleToolsCall(context.Background(), auth.RawCredentials{}, protocol.ToolsCallParams{Name: "journal_list"}, "req-2")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestHandleToolsCall_InvalidSubscriptionKey(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t)

	raw := auth.RawCredentials{Email: "user@example.com", SubscriptionKey: "fm_sub_abcdefgh"}
	_, err := a.HandleToolsCall(context.Background(), raw, protocol.ToolsCallParams{Name: "journal_list"}, "req-3")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestHandleToolsCall_GmailAliasingMatchesSameHandle(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, &subscription.Record{
		EmailNormalized: "jane@gmail.com",
		Key:             "fm_sub_abcdefgh",
		Tier:            tier.Free,
		Status:          subscription.StatusActive,
	})

	ctx := context.Background()
	create := protocol.ToolsCallParams{Name: "journal_create", Arguments: json.RawMessage(`{"content":"hi"}`)}
	_, err := a.HandleToolsCall(ctx, auth.RawCredentials{Email: "jane@gmail.com", SubscriptionKey: "fm_sub_abcdefgh"}, create, "req-4")
	require.NoError(t, err)

	list := protocol.ToolsCallParams{Name: "journal_list"}
	result, err := a.HandleToolsCall(ctx, auth.RawCredentials{Email: "j.a.n.e+work@gmail.com", SubscriptionKey: "fm_sub_abcdefgh"}, list, "req-5")
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, "hi")
}

func TestHandleToolsCall_RateLimitExceeded(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, &subscription.Record{
		EmailNormalized: "user@example.com",
		Key:             "fm_sub_abcdefgh",
		Tier:            tier.Free,
		Status:          subscription.StatusActive,
	})
	raw := auth.RawCredentials{Email: "user@example.com", SubscriptionKey: "fm_sub_abcdefgh"}
	params := protocol.ToolsCallParams{Name: "journal_list"}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := a.HandleToolsCall(ctx, raw, params, "req")
		require.NoError(t, err)
	}
	_, err := a.HandleToolsCall(ctx, raw, params, "req-over")
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
}

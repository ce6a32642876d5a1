package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/storage/memory"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := memory.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	r := NewRegistry(tier.New(), nil)
	RegisterBuiltins(r)
	return r, store
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)
	list := r.List()
	assert.Len(t, list, 10)
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()
	r, store := newTestRegistry(t)
	ac := &auth.AuthContext{UserHandle: "u1", Tier: tier.Enterprise}

	_, _, err := r.Dispatch(context.Background(), ac, store, "no_such_tool", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownTool(err))
}

func TestDispatch_FeatureGatedForFreeTier(t *testing.T) {
	t.Parallel()
	r, store := newTestRegistry(t)
	ac := &auth.AuthContext{UserHandle: "u1", Tier: tier.Free}

	_, _, err := r.Dispatch(context.Background(), ac, store, "records_put", json.RawMessage(`{"key":"k","value":{}}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestDispatch_JournalCreateAndList(t *testing.T) {
	t.Parallel()
	r, store := newTestRegistry(t)
	ac := &auth.AuthContext{UserHandle: "u1", Tier: tier.Free}
	ctx := context.Background()

	result, dr, err := r.Dispatch(ctx, ac, store, "journal_create", json.RawMessage(`{"content":"hello","tags":["a"]}`))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.Equal(t, "journal_create", dr.ToolName)

	result, _, err = r.Dispatch(ctx, ac, store, "journal_list", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, "hello")
}

func TestDispatch_InvalidParametersSurfaceAsToolError(t *testing.T) {
	t.Parallel()
	r, store := newTestRegistry(t)
	ac := &auth.AuthContext{UserHandle: "u1", Tier: tier.Free}

	result, _, err := r.Dispatch(context.Background(), ac, store, "journal_create", json.RawMessage(`{}`))
	require.NoError(t, err, "a classified tool error is returned as a ToolCallResult, not a Go error")
	assert.True(t, result.IsError)
}

func TestDispatch_StatsGatedToPremiumAndAbove(t *testing.T) {
	t.Parallel()
	r, store := newTestRegistry(t)
	ctx := context.Background()

	free := &auth.AuthContext{UserHandle: "u1", Tier: tier.Free}
	_, _, err := r.Dispatch(ctx, free, store, "stats_get", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))

	premium := &auth.AuthContext{UserHandle: "u2", Tier: tier.Premium}
	result, _, err := r.Dispatch(ctx, premium, store, "stats_get", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
}

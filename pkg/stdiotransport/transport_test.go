package stdiotransport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	"github.com/fortunamind/persistent-mcp/pkg/identity"
	"github.com/fortunamind/persistent-mcp/pkg/persistence"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/ratelimit"
	"github.com/fortunamind/persistent-mcp/pkg/storage/memory"
	"github.com/fortunamind/persistent-mcp/pkg/subscription"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
	"github.com/fortunamind/persistent-mcp/pkg/tools"
)

func newTestAdapter(t *testing.T) *persistence.Adapter {
	t.Helper()
	ctx := context.Background()
	backend, err := memory.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, backend.Migrate(ctx))
	t.Cleanup(func() { _ = backend.Close() })

	registry := tools.NewRegistry(tier.New(), nil)
	tools.RegisterBuiltins(registry)

	record := &subscription.Record{
		EmailNormalized: "jane@example.com",
		Key:             "fm_sub_abcdefgh",
		Tier:            tier.Free,
		Status:          subscription.StatusActive,
	}
	validator := subscription.New(subscription.NewStaticRegistry(record), nil)
	limiter := ratelimit.NewLocal(tier.New())

	return persistence.New(identity.New(""), validator, limiter, registry, backend, nil)
}

func TestRun_InitializeThenToolsCall(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t)
	creds := auth.RawCredentials{Email: "jane@example.com", SubscriptionKey: "fm_sub_abcdefgh"}

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"journal_create","arguments":{"content":"hi","tags":[]}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(input), &out, creds, adapter, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var initResp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	assert.Nil(t, initResp.Error)

	var callResp protocol.Response
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &callResp))
	assert.Nil(t, callResp.Error)
}

func TestRun_MalformedLineYieldsParseError(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t)
	creds := auth.RawCredentials{Email: "jane@example.com", SubscriptionKey: "fm_sub_abcdefgh"}

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader("not json\n"), &out, creds, adapter, nil)
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32700, resp.Error.Code)
}

func TestRun_UnknownMethod(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t)
	creds := auth.RawCredentials{Email: "jane@example.com", SubscriptionKey: "fm_sub_abcdefgh"}

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"bogus"}`+"\n"), &out, creds, adapter, nil)
	require.NoError(t, err)

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

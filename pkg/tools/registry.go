package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// Registry is the ToolRegistry (spec §4.6): a fixed set of tools
// registered once at startup, looked up by name in O(1) per request.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	catalog *tier.Catalog
	log     *zap.SugaredLogger
}

// NewRegistry builds an empty Registry.
func NewRegistry(catalog *tier.Catalog, log *zap.SugaredLogger) *Registry {
	return &Registry{tools: make(map[string]Tool), catalog: catalog, log: log}
}

// Register adds t to the registry. Registration happens at startup, never
// per request, so Register is not on the request hot path despite holding
// a write lock.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// List returns the registered tools as MCP Tool descriptors, for a
// tools/list response.
func (r *Registry) List() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: t.InputSchema(),
			},
		})
	}
	return list
}

// Dispatch resolves name, checks tier permission, and executes the tool,
// timing the call (spec §4.6/§4.7 step 6: dispatch tool). It returns a
// *protocol.ToolCallResult on every outcome it can classify, and a Go
// error only for conditions the caller (the HTTP/stdio transport) must
// translate into a JSON-RPC error response rather than a tool-level one.
func (r *Registry) Dispatch(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, name string, args json.RawMessage) (*protocol.ToolCallResult, Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, Result{ToolName: name}, apperrors.NewUnknownToolError(fmt.Sprintf("no such tool %q", name), nil)
	}

	if feature := t.RequiredFeature(); feature != "" && !r.catalog.HasFeature(ac.Tier, feature) {
		err := apperrors.NewUnauthorizedError(fmt.Sprintf("tier %q does not include the %q feature", ac.Tier, feature), nil)
		return nil, Result{ToolName: name}, err
	}

	start := time.Now()
	result, err := t.Execute(ctx, ac, backend, args)
	duration := time.Since(start)

	dispatchResult := Result{ToolName: name, Duration: duration, Err: err}
	if r.log != nil {
		r.log.Debugw("tool dispatched", "tool", name, "user_handle", ac.UserHandle, "duration_ms", duration.Milliseconds(), "error", err)
	}

	if err != nil {
		if appErr, ok := err.(*apperrors.Error); ok {
			return errorResult(appErr.Message), dispatchResult, nil
		}
		return nil, dispatchResult, err
	}
	return result, dispatchResult, nil
}

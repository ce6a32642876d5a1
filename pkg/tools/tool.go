// Package tools implements the uniform Tool contract and ToolRegistry
// (spec §4.6), composed rather than inherited: every tool is a small,
// independent value implementing Tool, registered once at startup and
// looked up by name per request.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// Tool is the uniform contract every persistence tool implements.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	// RequiredFeature names the tier feature gating this tool (spec
	// §4.2's Features list, e.g. "records", "stats"); an empty string
	// means the tool is available to every tier.
	RequiredFeature() string
	Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, args json.RawMessage) (*protocol.ToolCallResult, error)
}

// Result wraps a Tool's outcome with dispatch-level timing, used for
// structured logging and future metrics (spec §4.6 "timing").
type Result struct {
	ToolName string
	Duration time.Duration
	Err      error
}

func textResult(text string) *protocol.ToolCallResult {
	return &protocol.ToolCallResult{Content: []protocol.ToolContent{{Type: "text", Text: text}}}
}

func errorResult(text string) *protocol.ToolCallResult {
	return &protocol.ToolCallResult{Content: []protocol.ToolContent{{Type: "text", Text: text}}, IsError: true}
}

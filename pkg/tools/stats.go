package tools

import (
	"context"
	"encoding/json"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// StatsGetTool reports usage statistics, gated to tiers that include the
// "stats" feature (Premium and Enterprise, per the tier catalog).
type StatsGetTool struct{}

func (StatsGetTool) Name() string            { return "stats_get" }
func (StatsGetTool) Description() string     { return "Report journal/record counts and storage usage for the user." }
func (StatsGetTool) RequiredFeature() string { return "stats" }
func (StatsGetTool) InputSchema() map[string]any {
	return map[string]any{}
}

func (StatsGetTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, _ json.RawMessage) (*protocol.ToolCallResult, error) {
	stats, err := backend.GetUserStats(ctx, ac.UserHandle)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, apperrors.NewInternalError("stats_get: marshal result", err)
	}
	return textResult(string(data)), nil
}

package tools

import (
	"context"
	"encoding/json"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// PreferencesGetTool reads one of the caller's preference values.
type PreferencesGetTool struct{}

func (PreferencesGetTool) Name() string            { return "preferences_get" }
func (PreferencesGetTool) Description() string     { return "Read the JSON value stored under a preference key." }
func (PreferencesGetTool) RequiredFeature() string { return "preferences" }
func (PreferencesGetTool) InputSchema() map[string]any {
	return map[string]any{"key": map[string]any{"type": "string"}}
}

type preferencesGetArgs struct {
	Key string `json:"key"`
}

func (PreferencesGetTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args preferencesGetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("preferences_get: invalid arguments", err)
	}
	if args.Key == "" {
		return nil, apperrors.NewInvalidParametersError("preferences_get: key is required", nil)
	}
	pref, err := backend.GetPreference(ctx, ac.UserHandle, args.Key)
	if err != nil {
		return nil, err
	}
	return textResult(string(pref.Value)), nil
}

// PreferencesSetTool writes one of the caller's preference values.
type PreferencesSetTool struct{}

func (PreferencesSetTool) Name() string            { return "preferences_set" }
func (PreferencesSetTool) Description() string     { return "Store a JSON value under a preference key, overwriting any existing value." }
func (PreferencesSetTool) RequiredFeature() string { return "preferences" }
func (PreferencesSetTool) InputSchema() map[string]any {
	return map[string]any{
		"key":   map[string]any{"type": "string"},
		"value": map[string]any{"type": "object"},
	}
}

type preferencesSetArgs struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (PreferencesSetTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args preferencesSetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("preferences_set: invalid arguments", err)
	}
	if args.Key == "" || len(args.Value) == 0 {
		return nil, apperrors.NewInvalidParametersError("preferences_set: key and value are required", nil)
	}
	pref, err := backend.SetPreference(ctx, ac.UserHandle, args.Key, args.Value)
	if err != nil {
		return nil, err
	}
	return textResult(string(pref.Value)), nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// RecordsPutTool writes or overwrites one record.
type RecordsPutTool struct{}

func (RecordsPutTool) Name() string            { return "records_put" }
func (RecordsPutTool) Description() string     { return "Store a JSON value under a record_type/key, overwriting any existing value." }
func (RecordsPutTool) RequiredFeature() string { return "records" }
func (RecordsPutTool) InputSchema() map[string]any {
	return map[string]any{
		"record_type": map[string]any{"type": "string", "description": "groups records of the same shape, e.g. watchlist, note"},
		"key":         map[string]any{"type": "string"},
		"value":       map[string]any{"type": "object"},
	}
}

type recordsPutArgs struct {
	RecordType string          `json:"record_type"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
}

func (RecordsPutTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args recordsPutArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("records_put: invalid arguments", err)
	}
	if args.Key == "" || len(args.Value) == 0 {
		return nil, apperrors.NewInvalidParametersError("records_put: key and value are required", nil)
	}
	record, err := backend.PutRecord(ctx, ac.UserHandle, args.RecordType, args.Key, args.Value)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("stored record %s", record.RecordKey)), nil
}

// RecordsGetTool reads one record.
type RecordsGetTool struct{}

func (RecordsGetTool) Name() string            { return "records_get" }
func (RecordsGetTool) Description() string     { return "Read the JSON value stored under a record_type/key." }
func (RecordsGetTool) RequiredFeature() string { return "records" }
func (RecordsGetTool) InputSchema() map[string]any {
	return map[string]any{
		"record_type": map[string]any{"type": "string"},
		"key":         map[string]any{"type": "string"},
	}
}

type recordsGetArgs struct {
	RecordType string `json:"record_type"`
	Key        string `json:"key"`
}

func (RecordsGetTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args recordsGetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("records_get: invalid arguments", err)
	}
	if args.Key == "" {
		return nil, apperrors.NewInvalidParametersError("records_get: key is required", nil)
	}
	record, err := backend.GetRecord(ctx, ac.UserHandle, args.RecordType, args.Key)
	if err != nil {
		return nil, err
	}
	return textResult(string(record.Payload)), nil
}

// RecordsListTool lists the caller's records.
type RecordsListTool struct{}

func (RecordsListTool) Name() string            { return "records_list" }
func (RecordsListTool) Description() string     { return "List the user's stored records, optionally filtered by record_type and key prefix." }
func (RecordsListTool) RequiredFeature() string { return "records" }
func (RecordsListTool) InputSchema() map[string]any {
	return map[string]any{
		"record_type": map[string]any{"type": "string"},
		"key_prefix":  map[string]any{"type": "string"},
		"limit":       map[string]any{"type": "integer", "default": 20},
		"offset":      map[string]any{"type": "integer", "default": 0},
	}
}

type recordsListArgs struct {
	RecordType string `json:"record_type"`
	KeyPrefix  string `json:"key_prefix"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

func (RecordsListTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	args := recordsListArgs{Limit: 20}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, apperrors.NewInvalidParametersError("records_list: invalid arguments", err)
		}
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	records, err := backend.ListRecords(ctx, ac.UserHandle, args.RecordType, args.KeyPrefix, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, apperrors.NewInternalError("records_list: marshal result", err)
	}
	return textResult(string(data)), nil
}

// RecordsDeleteTool deletes one record.
type RecordsDeleteTool struct{}

func (RecordsDeleteTool) Name() string            { return "records_delete" }
func (RecordsDeleteTool) Description() string     { return "Delete the record stored under a record_type/key." }
func (RecordsDeleteTool) RequiredFeature() string { return "records" }
func (RecordsDeleteTool) InputSchema() map[string]any {
	return map[string]any{
		"record_type": map[string]any{"type": "string"},
		"key":         map[string]any{"type": "string"},
	}
}

func (RecordsDeleteTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args recordsGetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("records_delete: invalid arguments", err)
	}
	if args.Key == "" {
		return nil, apperrors.NewInvalidParametersError("records_delete: key is required", nil)
	}
	if err := backend.DeleteRecord(ctx, ac.UserHandle, args.RecordType, args.Key); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("deleted record %s", args.Key)), nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// JournalCreateTool appends an entry to the caller's journal.
type JournalCreateTool struct{}

func (JournalCreateTool) Name() string            { return "journal_create" }
func (JournalCreateTool) Description() string     { return "Append a new entry to the user's journal." }
func (JournalCreateTool) RequiredFeature() string { return "journal" }
func (JournalCreateTool) InputSchema() map[string]any {
	return map[string]any{
		"content":    map[string]any{"type": "string", "description": "entry body"},
		"entry_type": map[string]any{"type": "string", "description": "small-cardinality tag, e.g. trade, analysis, reflection"},
		"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"metadata":   map[string]any{"type": "object", "description": "opaque JSON attached to the entry"},
	}
}

type journalCreateArgs struct {
	Content   string          `json:"content"`
	EntryType string          `json:"entry_type"`
	Tags      []string        `json:"tags"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (JournalCreateTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args journalCreateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("journal_create: invalid arguments", err)
	}
	if args.Content == "" {
		return nil, apperrors.NewInvalidParametersError("journal_create: content is required", nil)
	}
	metadata := []byte(args.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	entry, err := backend.CreateJournalEntry(ctx, ac.UserHandle, args.Content, args.EntryType, args.Tags, metadata)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("created journal entry %s", entry.ID)), nil
}

// JournalListTool lists the caller's journal entries.
type JournalListTool struct{}

func (JournalListTool) Name() string            { return "journal_list" }
func (JournalListTool) Description() string     { return "List the user's journal entries, most recent first." }
func (JournalListTool) RequiredFeature() string { return "journal" }
func (JournalListTool) InputSchema() map[string]any {
	return map[string]any{
		"entry_type": map[string]any{"type": "string", "description": "filter to one entry_type"},
		"tag":        map[string]any{"type": "string", "description": "filter to entries carrying this tag"},
		"since":      map[string]any{"type": "string", "format": "date-time", "description": "filter to entries created at or after this time"},
		"limit":      map[string]any{"type": "integer", "default": 20},
		"offset":     map[string]any{"type": "integer", "default": 0},
	}
}

type journalListArgs struct {
	EntryType string `json:"entry_type"`
	Tag       string `json:"tag"`
	Since     string `json:"since"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

func (JournalListTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	args := journalListArgs{Limit: 20}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, apperrors.NewInvalidParametersError("journal_list: invalid arguments", err)
		}
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	filter := storage.JournalFilter{EntryType: args.EntryType, Tag: args.Tag}
	if args.Since != "" {
		since, err := time.Parse(time.RFC3339, args.Since)
		if err != nil {
			return nil, apperrors.NewInvalidParametersError("journal_list: since must be RFC3339", err)
		}
		filter.Since = &since
	}
	entries, err := backend.ListJournalEntries(ctx, ac.UserHandle, filter, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, apperrors.NewInternalError("journal_list: marshal result", err)
	}
	return textResult(string(data)), nil
}

// JournalDeleteTool deletes one of the caller's journal entries. Below the
// enterprise tier the delete is soft (spec §4.5 Guarantees): the entry is
// marked deleted and purged later by a retention job, rather than removed
// immediately.
type JournalDeleteTool struct{}

func (JournalDeleteTool) Name() string            { return "journal_delete" }
func (JournalDeleteTool) Description() string     { return "Delete a journal entry by id." }
func (JournalDeleteTool) RequiredFeature() string { return "journal" }
func (JournalDeleteTool) InputSchema() map[string]any {
	return map[string]any{"id": map[string]any{"type": "string"}}
}

type journalDeleteArgs struct {
	ID string `json:"id"`
}

func (JournalDeleteTool) Execute(ctx context.Context, ac *auth.AuthContext, backend storage.Backend, raw json.RawMessage) (*protocol.ToolCallResult, error) {
	var args journalDeleteArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, apperrors.NewInvalidParametersError("journal_delete: invalid arguments", err)
	}
	if args.ID == "" {
		return nil, apperrors.NewInvalidParametersError("journal_delete: id is required", nil)
	}
	soft := ac.Tier != tier.Enterprise
	if err := backend.DeleteJournalEntry(ctx, ac.UserHandle, args.ID, soft); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("deleted journal entry %s", args.ID)), nil
}

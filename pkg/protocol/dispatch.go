package protocol

import (
	"encoding/json"

	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
)

// ParseRequest decodes one JSON-RPC request from raw bytes. A malformed
// JSON-RPC request yields a JSON-RPC parse-error response, not a Go error,
// since the caller must still have a Response to write back to the client
// even when it cannot determine the request's ID.
func ParseRequest(raw []byte) (*Request, *Response) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewErrorResponse(nil, -32700, "parse error", err.Error())
	}
	if req.JSONRPC != Version {
		return nil, NewErrorResponse(req.ID, -32600, "invalid request: jsonrpc must be \"2.0\"", nil)
	}
	if req.Method == "" {
		return nil, NewErrorResponse(req.ID, -32600, "invalid request: method is required", nil)
	}
	return &req, nil
}

// ErrorResponseFor converts any error into a JSON-RPC Response for id,
// mapping *errors.Error values through the application error-code table
// (spec §4.8/§7) and falling back to an internal-error code for anything
// else so an unclassified error never leaks its message verbatim.
func ErrorResponseFor(id json.RawMessage, err error) *Response {
	if appErr, ok := err.(*apperrors.Error); ok {
		return NewErrorResponse(id, apperrors.JSONRPCCode(appErr), appErr.Message, nil)
	}
	return NewErrorResponse(id, -32603, "internal error", nil)
}

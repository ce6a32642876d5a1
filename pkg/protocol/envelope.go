// Package protocol implements the JSON-RPC 2.0 envelope and MCP method
// set this server speaks over both its HTTP and stdio transports (spec
// §4.8).
package protocol

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP method names this server recognizes, reusing mcp-go's own typed
// method constants rather than redeclaring the strings.
const (
	MethodInitialize     = string(mcp.MethodInitialize)
	MethodToolsList      = string(mcp.MethodToolsList)
	MethodToolsCall      = string(mcp.MethodToolsCall)
	MethodPing           = string(mcp.MethodPing)
)

// Version is the JSON-RPC version this server emits and requires.
const Version = "2.0"

// ThisServerInfo identifies this build in an initialize response. It is
// shared by every transport (HTTP, stdio) rather than declared per
// transport package, since both must report the same identity.
var ThisServerInfo = ServerInfo{Name: "fortunamind-persistent-mcp", Version: "dev"}

// Request is one JSON-RPC 2.0 request object. ID is left as json.RawMessage
// so a null, number, or string ID round-trips unchanged, matching the
// spec.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 response object. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResultResponse builds a successful Response for the given request ID.
func NewResultResponse(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds a failed Response for the given request ID.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// ToolsCallParams is the params payload of a tools/call request (spec
// §4.6/§4.8).
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolsListResult is the result payload of a tools/list request, the same
// shape mcp-go's own client expects (mcp.ListToolsResult).
type ToolsListResult = mcp.ListToolsResult

// ToolCallResult is the result payload of a tools/call request.
type ToolCallResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolContent is one content block of a ToolCallResult.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// InitializeResult is the result payload of an initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// ServerInfo identifies this server in an initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

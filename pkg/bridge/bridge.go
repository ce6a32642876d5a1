// Package bridge implements the client-side stdio↔HTTP bridge (spec
// §4.9): a small process that reads line-delimited JSON-RPC on stdin,
// forwards each line as one HTTP POST to a remote MCP server with
// injected auth headers read once from the environment, and writes the
// HTTP response body back as one stdout line.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
)

// Headers read once at startup and attached to every forwarded request
// (spec §4.9). Secrets never touch stdout or logs.
type Headers struct {
	Email           string
	SubscriptionKey string
	UpstreamAPIKey  string
	UpstreamSecret  string
}

// HeadersFromEnv reads the bridge's one-time credential set.
func HeadersFromEnv() Headers {
	return Headers{
		Email:           os.Getenv("FM_USER_EMAIL"),
		SubscriptionKey: os.Getenv("FM_SUBSCRIPTION_KEY"),
		UpstreamAPIKey:  os.Getenv("FM_UPSTREAM_API_KEY"),
		UpstreamSecret:  os.Getenv("FM_UPSTREAM_API_SECRET"),
	}
}

// Client forwards JSON-RPC lines to a remote MCP HTTP server.
type Client struct {
	HTTP       *http.Client
	Endpoint   string
	Headers    Headers
	Log        *zap.SugaredLogger
}

// NewClient builds a Client with a bounded per-request timeout, matching
// the 10s single-upstream-call default (spec §5).
func NewClient(endpoint string, headers Headers, log *zap.SugaredLogger) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Endpoint: endpoint,
		Headers:  headers,
		Log:      log,
	}
}

// Run reads one JSON-RPC line at a time from r, forwards each to Endpoint,
// and writes the response (or a translated error) as one line to w. Each
// non-empty stdin line yields exactly one stdout line, in order, per spec
// §4.9's framing contract; empty lines are skipped.
func (c *Client) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		out := c.forward(ctx, line)
		if _, err := w.Write(append(out, '\n')); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// forward posts one JSON-RPC line and returns the raw bytes to write back.
// Any failure (timeout, non-JSON body, 5xx) is translated into a JSON-RPC
// error response that preserves the original request ID, so the local
// peer never observes a broken line.
func (c *Client) forward(ctx context.Context, line []byte) []byte {
	id := requestIDOf(line)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(line))
	if err != nil {
		return errorLine(id, fmt.Sprintf("failed to build upstream request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Headers.Email != "" {
		req.Header.Set(auth.HeaderUserEmail, c.Headers.Email)
	}
	if c.Headers.SubscriptionKey != "" {
		req.Header.Set(auth.HeaderSubscriptionKey, c.Headers.SubscriptionKey)
	}
	if c.Headers.UpstreamAPIKey != "" {
		req.Header.Set(auth.HeaderUpstreamAPIKey, c.Headers.UpstreamAPIKey)
	}
	if c.Headers.UpstreamSecret != "" {
		req.Header.Set(auth.HeaderUpstreamAPISecret, c.Headers.UpstreamSecret)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if c.Log != nil {
			c.Log.Warnw("upstream request failed", "error", err)
		}
		return errorLine(id, "upstream request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorLine(id, "failed to read upstream response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		if c.Log != nil {
			c.Log.Warnw("upstream returned server error", "status", resp.StatusCode)
		}
		return errorLine(id, fmt.Sprintf("upstream returned status %d", resp.StatusCode))
	}

	var probe protocol.Response
	if err := json.Unmarshal(body, &probe); err != nil {
		return errorLine(id, "upstream returned a non-JSON-RPC body")
	}

	return body
}

func requestIDOf(line []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	return probe.ID
}

func errorLine(id json.RawMessage, message string) []byte {
	resp := protocol.NewErrorResponse(id, -32603, message, nil)
	raw, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return raw
}

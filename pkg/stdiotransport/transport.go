// Package stdiotransport implements the stdio JSON-RPC transport (spec
// §4.8): one JSON object per input line, one JSON object per output line,
// sharing the same PersistenceAdapter and ToolRegistry the HTTP transport
// uses. Credentials are read once at startup from the environment and
// attached to every request — there is no per-request header mechanism
// on this transport.
package stdiotransport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/persistence"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
)

// Exit codes (spec "Exit codes (stdio)").
const (
	ExitClean             = 0
	ExitFatalConfig       = 1
	ExitUnrecoverableDown = 2
)

// CredentialsFromEnv reads the one-time, process-wide credential set this
// transport attaches to every synthesized request (spec §4.8).
func CredentialsFromEnv() auth.RawCredentials {
	return auth.RawCredentials{
		Email:           os.Getenv("FM_USER_EMAIL"),
		SubscriptionKey: os.Getenv("FM_SUBSCRIPTION_KEY"),
		UpstreamAPIKey:  os.Getenv("FM_UPSTREAM_API_KEY"),
		UpstreamSecret:  os.Getenv("FM_UPSTREAM_API_SECRET"),
	}
}

// Run reads newline-delimited JSON-RPC requests from r and writes
// newline-delimited responses to w until r returns EOF or ctx is
// canceled. It returns nil on a clean EOF shutdown; callers translate
// that into ExitClean at the process boundary.
func Run(ctx context.Context, r io.Reader, w io.Writer, creds auth.RawCredentials, adapter *persistence.Adapter, log *zap.SugaredLogger) error {
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
		resp := handleLine(ctx, adapter, creds, line, log)
		if resp == nil {
			continue
		}
		if err := writeLine(w, resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func handleLine(ctx context.Context, adapter *persistence.Adapter, creds auth.RawCredentials, line []byte, log *zap.SugaredLogger) *protocol.Response {
	req, errResp := protocol.ParseRequest(line)
	if errResp != nil {
		return errResp
	}

	switch req.Method {
	case protocol.MethodInitialize:
		resp, err := protocol.NewResultResponse(req.ID, protocol.InitializeResult{
			ProtocolVersion: protocol.Version,
			ServerInfo:      protocol.ThisServerInfo,
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
		if err != nil {
			return protocol.ErrorResponseFor(req.ID, apperrors.NewInternalError("failed to encode initialize result", err))
		}
		return resp
	case protocol.MethodPing:
		resp, _ := protocol.NewResultResponse(req.ID, map[string]any{})
		return resp
	case protocol.MethodToolsList:
		resp, err := protocol.NewResultResponse(req.ID, protocol.ToolsListResult{Tools: adapter.Registry.List()})
		if err != nil {
			return protocol.ErrorResponseFor(req.ID, apperrors.NewInternalError("failed to encode tools/list result", err))
		}
		return resp
	case protocol.MethodToolsCall:
		return handleToolsCall(ctx, adapter, creds, req, log)
	default:
		return protocol.ErrorResponseFor(req.ID, apperrors.NewUnknownMethodError("unknown method: "+req.Method, nil))
	}
}

func handleToolsCall(ctx context.Context, adapter *persistence.Adapter, creds auth.RawCredentials, req *protocol.Request, log *zap.SugaredLogger) *protocol.Response {
	var params protocol.ToolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.ErrorResponseFor(req.ID, apperrors.NewInvalidParametersError("invalid tools/call params", err))
		}
	}

	result, err := adapter.HandleToolsCall(ctx, creds, params, requestIDFor(req))
	if err != nil {
		if log != nil {
			log.Warnw("tools/call failed", "error", err)
		}
		return protocol.ErrorResponseFor(req.ID, err)
	}
	resp, err := protocol.NewResultResponse(req.ID, result)
	if err != nil {
		return protocol.ErrorResponseFor(req.ID, apperrors.NewInternalError("failed to encode result", err))
	}
	return resp
}

func requestIDFor(req *protocol.Request) string {
	if len(req.ID) == 0 {
		return ""
	}
	return string(req.ID)
}

func writeLine(w io.Writer, resp *protocol.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

// ErrFatalConfig wraps a startup configuration failure so cmd/fmmcp can
// map it to ExitFatalConfig without string-matching an error message.
var ErrFatalConfig = errors.New("fatal configuration error")

// ErrUnrecoverable wraps a downstream failure (storage, transport) that
// forced the process to give up after startup, mapped to
// ExitUnrecoverableDown.
var ErrUnrecoverable = errors.New("unrecoverable downstream error")

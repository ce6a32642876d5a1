// Package api implements the HTTP transport (spec §4.8): a single JSON-RPC
// endpoint at /mcp plus unauthenticated /health and /status endpoints for
// operational monitoring.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	apihttperr "github.com/fortunamind/persistent-mcp/pkg/api/errors"
	v1 "github.com/fortunamind/persistent-mcp/pkg/api/v1"
	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/persistence"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second

	// maxRequestBodyBytes bounds a single JSON-RPC request body (spec §4.8).
	maxRequestBodyBytes = 1 << 20 // 1 MiB

	// ipRateLimit is a pre-authentication, per-IP guard that sits in front
	// of the subscription-aware limiter in pkg/ratelimit; it exists only
	// to blunt unauthenticated floods before they ever reach identity
	// derivation or the registry lookup.
	ipRateLimit       = 100
	ipRateLimitWindow = 1 * time.Minute
)

// Serve starts the HTTP server on the given address and serves the MCP
// JSON-RPC endpoint plus health/status. It is assumed the caller sets up
// appropriate signal handling and cancels ctx to trigger graceful
// shutdown.
func Serve(ctx context.Context, address string, adapter *persistence.Adapter, log *zap.SugaredLogger) error {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
	)

	r.Mount("/", v1.HealthcheckRouter(adapter.Backend))

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(ipRateLimit, ipRateLimitWindow))
		r.Use(requestBodySizeLimitMiddleware(maxRequestBodyBytes))
		r.Post("/mcp", apihttperr.ErrorHandler(log, mcpHandler(adapter, log)))
	})

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Infow("starting http server", "address", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server stopped with error", "error", err)
		}
	}()

	<-ctx.Done()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Infow("http server stopped")
	return nil
}

// mcpHandler returns the handler for POST /mcp: parse the JSON-RPC
// envelope, extract credentials, route by method, and write back a
// JSON-RPC response. Malformed envelopes and classified application
// errors are both translated into JSON-RPC error objects rather than raw
// HTTP error codes, since the wire contract here is JSON-RPC over HTTP,
// not a REST error convention.
func mcpHandler(adapter *persistence.Adapter, log *zap.SugaredLogger) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		body, err := auth.ReadAndRestore(r)
		if err != nil {
			return apperrors.NewInvalidParametersError("failed to read request body", err)
		}

		req, errResp := protocol.ParseRequest(body)
		if errResp != nil {
			// Malformed JSON or an invalid envelope is a transport-level
			// failure (spec §4.8/§6), not an application error, so it is
			// the one parse-time case that gets a non-200 HTTP status.
			return writeJSON(w, http.StatusBadRequest, errResp)
		}

		var resp *protocol.Response
		var callErr error
		switch req.Method {
		case protocol.MethodInitialize:
			resp, err = handleInitialize(req)
		case protocol.MethodPing:
			resp, err = protocol.NewResultResponse(req.ID, map[string]any{})
		case protocol.MethodToolsList:
			resp, err = handleToolsList(adapter, req)
		case protocol.MethodToolsCall:
			resp, callErr = handleToolsCall(r.Context(), adapter, r, body, req, log)
		default:
			resp = protocol.ErrorResponseFor(req.ID, apperrors.NewUnknownMethodError("unknown method: "+req.Method, nil))
		}
		if err != nil {
			resp = protocol.ErrorResponseFor(req.ID, err)
		}

		return writeJSON(w, statusFor(callErr), resp)
	}
}

func handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResultResponse(req.ID, protocol.InitializeResult{
		ProtocolVersion: protocol.Version,
		ServerInfo:      protocol.ThisServerInfo,
		Capabilities:    map[string]any{"tools": map[string]any{}},
	})
}

func handleToolsList(adapter *persistence.Adapter, req *protocol.Request) (*protocol.Response, error) {
	return protocol.NewResultResponse(req.ID, protocol.ToolsListResult{Tools: adapter.Registry.List()})
}

// errMissingCredentials is returned by handleToolsCall, never by the
// adapter itself, so the HTTP layer can give it the specific 400 status
// spec §4.8/§6 carves out for missing auth headers — distinct from every
// other application error, which rides back on HTTP 200.
var errMissingCredentials = apperrors.NewUnauthorizedError("missing credentials", nil)

func handleToolsCall(ctx context.Context, adapter *persistence.Adapter, r *http.Request, body []byte, req *protocol.Request, log *zap.SugaredLogger) (*protocol.Response, error) {
	var params protocol.ToolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.ErrorResponseFor(req.ID, apperrors.NewInvalidParametersError("invalid tools/call params", err)), nil
		}
	}

	raw := auth.ExtractFromHTTP(r, body)
	if !raw.Complete() {
		return protocol.ErrorResponseFor(req.ID, errMissingCredentials), errMissingCredentials
	}

	requestID := middleware.GetReqID(ctx)

	result, err := adapter.HandleToolsCall(ctx, raw, params, requestID)
	if err != nil {
		if log != nil {
			log.Warnw("tools/call failed", "error", err, "request_id", requestID)
		}
		return protocol.ErrorResponseFor(req.ID, err), err
	}
	resp, encErr := protocol.NewResultResponse(req.ID, result)
	if encErr != nil {
		return protocol.ErrorResponseFor(req.ID, apperrors.NewInternalError("failed to encode result", encErr)), nil
	}
	return resp, nil
}

// statusFor picks the HTTP status for a tools/call response. Per spec
// §4.8/§6, nearly every application error still rides back on HTTP 200 —
// only missing credentials (400) and rate-limit rejection (429) get a
// distinct transport-level status.
func statusFor(callErr error) int {
	switch {
	case callErr == nil:
		return http.StatusOK
	case callErr == errMissingCredentials:
		return http.StatusBadRequest
	case apperrors.IsRateLimited(callErr):
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

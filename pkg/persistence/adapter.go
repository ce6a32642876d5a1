// Package persistence implements the PersistenceAdapter (spec §4.7): the
// single orchestrator every transport (HTTP, stdio) calls into for a
// tools/call request, running credential extraction through tool dispatch
// as one fixed pipeline.
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/auth"
	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/identity"
	"github.com/fortunamind/persistent-mcp/pkg/protocol"
	"github.com/fortunamind/persistent-mcp/pkg/ratelimit"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
	"github.com/fortunamind/persistent-mcp/pkg/subscription"
	"github.com/fortunamind/persistent-mcp/pkg/tools"
)

// Adapter is the PersistenceAdapter. It is constructed once at startup
// and shared by every in-flight request; it holds no per-request state.
type Adapter struct {
	Deriver    *identity.Deriver
	Validator  *subscription.Validator
	Limiter    ratelimit.Limiter
	Registry   *tools.Registry
	Backend    storage.Backend
	Log        *zap.SugaredLogger
}

// New builds an Adapter from its collaborators.
func New(deriver *identity.Deriver, validator *subscription.Validator, limiter ratelimit.Limiter, registry *tools.Registry, backend storage.Backend, log *zap.SugaredLogger) *Adapter {
	return &Adapter{
		Deriver:   deriver,
		Validator: validator,
		Limiter:   limiter,
		Registry:  registry,
		Backend:   backend,
		Log:       log,
	}
}

// HandleToolsCall runs the full six-stage pipeline for one tools/call
// request (spec §4.7):
//  1. extract credentials (done by the caller — see pkg/auth.ExtractFromHTTP
//     or the stdio transport's equivalent — and passed in as raw);
//  2. validate the subscription;
//  3. derive the user handle;
//  4. check and record the rate limit;
//  5. build the AuthContext;
//  6. dispatch the tool.
//
// requestID is an opaque per-request identifier used only for log
// correlation (spec §3 AuthContext.RequestID); it is never derived from
// or related to the user's identity.
func (a *Adapter) HandleToolsCall(ctx context.Context, raw auth.RawCredentials, params protocol.ToolsCallParams, requestID string) (*protocol.ToolCallResult, error) {
	if !raw.Complete() {
		return nil, apperrors.NewUnauthorizedError("missing email or subscription key", nil)
	}

	emailNormalized, err := identity.NormalizeEmail(raw.Email)
	if err != nil {
		return nil, apperrors.NewInvalidEmailError("invalid email address", err)
	}

	result, err := a.Validator.Validate(ctx, emailNormalized, raw.SubscriptionKey)
	if err != nil {
		if a.Log != nil {
			a.Log.Warnw("subscription registry unavailable, rejecting request", "error", err)
		}
	}
	if !result.Valid {
		return nil, apperrors.NewUnauthorizedError(string(result.Reason), nil)
	}

	userHandle, err := a.Deriver.DeriveHandle(raw.Email)
	if err != nil {
		return nil, apperrors.NewInvalidEmailError("invalid email address", err)
	}

	decision, err := a.Limiter.Allow(ctx, userHandle, result.Tier)
	if err != nil {
		return nil, apperrors.NewUnavailableError("rate limiter unavailable", err)
	}
	if !decision.Allowed {
		return nil, apperrors.NewRateLimitedError("rate limit exceeded for "+string(decision.BreachedBy)+" window", nil)
	}

	ac := &auth.AuthContext{
		UserHandle:      userHandle,
		EmailNormalized: emailNormalized,
		Tier:            result.Tier,
		SubscriptionKey: raw.SubscriptionKey,
		UpstreamCreds:   raw.ToUpstreamCredentials(),
		RequestID:       requestID,
		ReceivedAt:      time.Now(),
	}
	ctx = auth.WithAuthContext(ctx, ac)

	var args json.RawMessage = params.Arguments
	toolResult, dispatchResult, err := a.Registry.Dispatch(ctx, ac, a.Backend, params.Name, args)
	if err != nil {
		return nil, err
	}
	if a.Log != nil {
		a.Log.Debugw("request completed", "tool", dispatchResult.ToolName, "user_handle", ac.UserHandle, "duration_ms", dispatchResult.Duration.Milliseconds())
	}
	return toolResult, nil
}

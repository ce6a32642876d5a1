// Package auth holds the per-request AuthContext (spec §3) and the
// context-key plumbing used to carry it through a request's lifetime.
// An AuthContext is never persisted; it lives exactly as long as one
// request (spec §3 Lifecycle), mirroring the teacher's
// Identity/IdentityContextKey pattern but scoped to this server's own
// email+subscription-key authentication model rather than OIDC.
package auth

import "context"

// authContextKey is an unexported type so values stored under it cannot
// collide with context keys from other packages, even ones also named
// "authContextKey" — each empty struct type is distinct.
type authContextKey struct{}

// WithAuthContext stores an AuthContext in ctx. If ac is nil the original
// context is returned unchanged.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	if ac == nil {
		return ctx
	}
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext retrieves the AuthContext stored by WithAuthContext, if any.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok
}

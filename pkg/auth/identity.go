// Package auth provides the per-request authentication context.
package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// UpstreamCredentials are third-party exchange API credentials forwarded
// per request. They are never persisted (spec invariant 6) and are
// redacted by String() and MarshalJSON().
type UpstreamCredentials struct {
	APIKey    string
	APISecret string
}

// AuthContext is the authenticated identity of one in-flight request
// (spec §3). It is constructed by the PersistenceAdapter after
// subscription validation succeeds and is dropped when the request
// completes; it is never written to a log, database row, or cache.
type AuthContext struct {
	UserHandle        string
	EmailNormalized   string
	Tier              tier.Tier
	SubscriptionKey   string
	UpstreamCreds     *UpstreamCredentials
	RequestID         string
	ReceivedAt        time.Time
}

// String returns a redacted representation safe for logging.
func (a *AuthContext) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("AuthContext{UserHandle:%q Tier:%q RequestID:%q}", a.UserHandle, a.Tier, a.RequestID)
}

// MarshalJSON redacts the subscription key and upstream credentials so this
// type can never accidentally leak secrets through a JSON log encoder or an
// API response.
func (a *AuthContext) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	type safe struct {
		UserHandle      string    `json:"user_handle"`
		EmailNormalized string    `json:"email_normalized"`
		Tier            tier.Tier `json:"tier"`
		SubscriptionKey string    `json:"subscription_key"`
		HasUpstreamAuth bool      `json:"has_upstream_auth"`
		RequestID       string    `json:"request_id"`
		ReceivedAt      time.Time `json:"received_at"`
	}
	redactedKey := ""
	if a.SubscriptionKey != "" {
		redactedKey = "REDACTED"
	}
	return json.Marshal(&safe{
		UserHandle:      a.UserHandle,
		EmailNormalized: a.EmailNormalized,
		Tier:            a.Tier,
		SubscriptionKey: redactedKey,
		HasUpstreamAuth: a.UpstreamCreds != nil,
		RequestID:       a.RequestID,
		ReceivedAt:      a.ReceivedAt,
	})
}

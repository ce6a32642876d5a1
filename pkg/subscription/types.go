// Package subscription implements the cached, tiered SubscriptionValidator
// (spec §4.3).
package subscription

import (
	"regexp"
	"time"

	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// Status is the lifecycle state of a SubscriptionRecord (spec §3).
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
	StatusGrace   Status = "grace"
)

// keyPattern matches "fm_sub_<token>" with token a >=8 char URL-safe string.
var keyPattern = regexp.MustCompile(`^fm_sub_[A-Za-z0-9_-]{8,}$`)

// ValidKeySyntax reports whether key matches the subscription-key pattern,
// without consulting the registry (spec §4.3 step 1).
func ValidKeySyntax(key string) bool {
	return keyPattern.MatchString(key)
}

// Record is a SubscriptionRecord row (spec §3). EmailNormalized is always
// stored in normalized form (invariant 3). GraceUntil is set when Status is
// StatusGrace; if unset, evaluate falls back to ExpiresAt as the grace
// deadline.
type Record struct {
	EmailNormalized string
	Key             string
	Tier            tier.Tier
	Status          Status
	ExpiresAt       *time.Time
	GraceUntil      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reason enumerates why a ValidationResult is invalid.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMalformedKey       Reason = "malformed_key"
	ReasonNotFound           Reason = "not_found"
	ReasonKeyMismatch        Reason = "key_mismatch"
	ReasonRevoked            Reason = "revoked"
	ReasonExpired            Reason = "expired"
	ReasonBackendUnavailable Reason = "backend_unavailable"
)

// Result is a ValidationResult (spec §3).
type Result struct {
	Valid      bool
	Tier       tier.Tier
	Reason     Reason
	ExpiresAt  *time.Time
	GraceUntil *time.Time
	CachedAt   time.Time
}

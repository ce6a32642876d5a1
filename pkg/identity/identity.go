// Package identity derives the stable, opaque per-user handle that is
// the sole tenant key used throughout storage. See spec §4.1.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
)

// DefaultNamespace is the namespace New falls back to when given an empty
// one. The deployment's namespace is set via IDENTITY_NAMESPACE; changing
// it rotates every derived handle and requires a data migration.
const DefaultNamespace = "fm-identity-v1"

// aliasNormalizingDomains lists webmail domains where the local part is
// dot-insensitive and supports "+tag" aliasing. Only Gmail's convention is
// built in, and the set is fixed: NormalizeEmail reads this map directly.
var aliasNormalizingDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// Deriver turns a raw email address into a UserHandle under a fixed
// namespace. It is pure, deterministic, and safe for concurrent use.
type Deriver struct {
	namespace    string
	aliasDomains map[string]bool
}

// New constructs a Deriver using the default alias-normalizing domain set.
// An empty namespace falls back to DefaultNamespace.
func New(namespace string) *Deriver {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Deriver{namespace: namespace, aliasDomains: aliasNormalizingDomains}
}

// NormalizeEmail applies the normalization rules from spec §3/§4.1:
// trim, lowercase, and for alias-normalizing domains, strip any "+suffix"
// and remove dots from the local part.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", apperrors.NewInvalidEmailError("email must not be empty", nil)
	}
	at := strings.LastIndex(e, "@")
	if at <= 0 || at == len(e)-1 {
		return "", apperrors.NewInvalidEmailError("email must contain a local part and a domain", nil)
	}
	local, domain := e[:at], e[at+1:]

	if aliasNormalizingDomains[domain] {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
		if local == "" {
			return "", apperrors.NewInvalidEmailError("email local part must not be empty after normalization", nil)
		}
	}
	return local + "@" + domain, nil
}

// DeriveHandle normalizes email and returns its 64-hex-character SHA-256
// digest under the Deriver's namespace. Deterministic: recomputing over an
// equivalent email (per NormalizeEmail) yields the identical handle.
func (d *Deriver) DeriveHandle(email string) (string, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(d.namespace + ":" + normalized))
	return hex.EncodeToString(sum[:]), nil
}

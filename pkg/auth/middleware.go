package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// Header names for the HTTP transport (spec §4.8/§6).
const (
	HeaderUserEmail       = "X-User-Email"
	HeaderSubscriptionKey = "X-Subscription-Key"
	HeaderUpstreamAPIKey  = "X-Upstream-Api-Key"
	HeaderUpstreamAPISecret = "X-Upstream-Api-Secret"
)

// RawCredentials are the not-yet-validated credentials pulled off a
// request, before SubscriptionValidator or Identity ever see them.
type RawCredentials struct {
	Email           string
	SubscriptionKey string
	UpstreamAPIKey  string
	UpstreamSecret  string
}

// bodyAuthParams mirrors the optional body.params.auth fallback the spec
// allows (extraction order: header → body.params.auth → none).
type bodyAuthParams struct {
	Params struct {
		Auth struct {
			Email           string `json:"email"`
			SubscriptionKey string `json:"subscriptionKey"`
			UpstreamAPIKey  string `json:"upstreamApiKey"`
			UpstreamSecret  string `json:"upstreamApiSecret"`
		} `json:"auth"`
	} `json:"params"`
}

// ExtractFromHTTP pulls credentials from request headers first, falling
// back to params.auth in the JSON-RPC body if headers are absent. bodyJSON
// is the already-buffered request body (the caller must have read it once
// to parse the JSON-RPC envelope) so this never consumes r.Body itself.
func ExtractFromHTTP(r *http.Request, bodyJSON []byte) RawCredentials {
	c := RawCredentials{
		Email:           r.Header.Get(HeaderUserEmail),
		SubscriptionKey: r.Header.Get(HeaderSubscriptionKey),
		UpstreamAPIKey:  r.Header.Get(HeaderUpstreamAPIKey),
		UpstreamSecret:  r.Header.Get(HeaderUpstreamAPISecret),
	}
	if c.Email != "" && c.SubscriptionKey != "" {
		return c
	}

	var body bodyAuthParams
	if err := json.Unmarshal(bodyJSON, &body); err == nil {
		if c.Email == "" {
			c.Email = body.Params.Auth.Email
		}
		if c.SubscriptionKey == "" {
			c.SubscriptionKey = body.Params.Auth.SubscriptionKey
		}
		if c.UpstreamAPIKey == "" {
			c.UpstreamAPIKey = body.Params.Auth.UpstreamAPIKey
		}
		if c.UpstreamSecret == "" {
			c.UpstreamSecret = body.Params.Auth.UpstreamSecret
		}
	}
	return c
}

// Complete reports whether the required credentials (email + subscription
// key) are both present.
func (c RawCredentials) Complete() bool {
	return c.Email != "" && c.SubscriptionKey != ""
}

// HasUpstream reports whether pass-through upstream credentials were supplied.
func (c RawCredentials) HasUpstream() bool {
	return c.UpstreamAPIKey != "" || c.UpstreamSecret != ""
}

// ToUpstreamCredentials converts RawCredentials' upstream fields, returning
// nil when neither is present.
func (c RawCredentials) ToUpstreamCredentials() *UpstreamCredentials {
	if !c.HasUpstream() {
		return nil
	}
	return &UpstreamCredentials{APIKey: c.UpstreamAPIKey, APISecret: c.UpstreamSecret}
}

// ReadAndRestore reads r.Body fully and replaces it with a fresh reader, so
// downstream JSON-RPC parsing can still consume the body after credential
// extraction has peeked at it.
func ReadAndRestore(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

package subscription

import "context"

// Registry is the upstream source of truth for subscription records (spec
// §4.3). A production deployment backs this with the billing/entitlement
// system; tests back it with an in-memory fake.
type Registry interface {
	// Lookup returns the subscription record for the given normalized email,
	// or (nil, nil) if no subscription exists for that email.
	Lookup(ctx context.Context, emailNormalized string) (*Record, error)
}

// StaticRegistry is a Registry backed by an in-memory map, keyed by
// normalized email. It exists for tests and local development.
type StaticRegistry struct {
	records map[string]*Record
}

// NewStaticRegistry builds a StaticRegistry from the given records.
func NewStaticRegistry(records ...*Record) *StaticRegistry {
	m := make(map[string]*Record, len(records))
	for _, r := range records {
		m[r.EmailNormalized] = r
	}
	return &StaticRegistry{records: m}
}

// Lookup implements Registry.
func (s *StaticRegistry) Lookup(_ context.Context, emailNormalized string) (*Record, error) {
	return s.records[emailNormalized], nil
}

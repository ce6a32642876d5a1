// Package storage defines the StorageBackend contract (spec §4.5) shared
// by the Postgres-backed production implementation (pkg/storage/postgres)
// and the sqlite-backed test double (pkg/storage/memory).
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// JournalEntry is one row of a user's journal (spec §3). EntryType is a
// free-form, small-cardinality tag such as "trade", "analysis", or
// "reflection"; Metadata is an opaque JSON object alongside the entry text.
// Metadata is json.RawMessage, not []byte, so that json.Marshal of a
// JournalEntry (e.g. for journal_list's tool output) embeds it as a JSON
// object rather than base64-encoding it.
type JournalEntry struct {
	ID         string
	UserHandle string
	Content    string
	EntryType  string
	Tags       []string
	Metadata   json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// JournalFilter narrows ListJournalEntries (spec §4.5
// get_journal_entries(..., filter={entry_type?, tag?, since?}, ...)). A
// zero value matches every entry.
type JournalFilter struct {
	EntryType string
	Tag       string
	Since     *time.Time
}

// Preference is one (user_handle, key) -> value row (spec §3), unique on
// (user_handle, key).
type Preference struct {
	UserHandle string
	Key        string
	Value      json.RawMessage
	UpdatedAt  time.Time
}

// Record is one row of a user's generic record storage, gated to the
// "records" tier feature (spec §3, §4.2). RecordType groups records of the
// same shape (e.g. "watchlist", "note"); RecordKey identifies one record
// within that type.
type Record struct {
	ID         string
	UserHandle string
	RecordType string
	RecordKey  string
	Payload    json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserStats aggregates usage for a user, gated to the "stats" tier
// feature.
type UserStats struct {
	UserHandle     string
	JournalCount   int
	RecordCount    int
	StorageBytes   int64
	LastActivityAt time.Time
}

// Backend is the StorageBackend contract. Every method is scoped to a
// single user_handle, enforced both by the backend's own isolation
// mechanism (Postgres row-level security; the sqlite test double's bare
// WHERE predicates) and by an explicit user_handle predicate in every
// query, per spec §4.5 invariant: "defense in depth, never RLS alone."
type Backend interface {
	Health(ctx context.Context) error
	Migrate(ctx context.Context) error

	CreateJournalEntry(ctx context.Context, userHandle, content, entryType string, tags []string, metadata []byte) (*JournalEntry, error)
	ListJournalEntries(ctx context.Context, userHandle string, filter JournalFilter, limit, offset int) ([]*JournalEntry, error)
	GetJournalEntry(ctx context.Context, userHandle, id string) (*JournalEntry, error)
	// DeleteJournalEntry removes an entry. When soft is true (every tier
	// below enterprise, spec §4.5 Guarantees), the row is marked deleted
	// rather than removed, to be purged later by a retention job.
	DeleteJournalEntry(ctx context.Context, userHandle, id string, soft bool) error

	GetPreference(ctx context.Context, userHandle, key string) (*Preference, error)
	SetPreference(ctx context.Context, userHandle, key string, value []byte) (*Preference, error)

	PutRecord(ctx context.Context, userHandle, recordType, recordKey string, payload []byte) (*Record, error)
	GetRecord(ctx context.Context, userHandle, recordType, recordKey string) (*Record, error)
	ListRecords(ctx context.Context, userHandle, recordType, keyPrefix string, limit, offset int) ([]*Record, error)
	DeleteRecord(ctx context.Context, userHandle, recordType, recordKey string) error

	GetUserStats(ctx context.Context, userHandle string) (*UserStats, error)

	Close() error
}

// Package memory is a sqlite-backed storage.Backend used by tests and
// local development in place of Postgres. It is explicitly a test aid,
// not a second production backend: it has no row-level security, relying
// solely on the explicit user_handle predicate in every query.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// Store implements storage.Backend against a single sqlite file (or
// :memory:).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating parent directories and the file as needed) a
// sqlite database at path, with the same pragmas the teacher's sqlite
// storage layer uses: WAL journaling, a 5s busy timeout, NORMAL
// synchronous mode, foreign keys on, and a single connection (sqlite
// serializes writers regardless, so pooling connections buys nothing and
// risks "database is locked" errors under concurrent writers).
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewStorageError("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError("open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -2000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, errors.NewStorageError(fmt.Sprintf("apply %s", p), err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Health implements storage.Backend.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStorageError("sqlite health check", err)
	}
	return nil
}

// Migrate implements storage.Backend, creating the schema directly
// (a goose migration runner is unnecessary ceremony for a test double with
// a single, never-evolving schema version).
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		user_handle TEXT NOT NULL,
		content TEXT NOT NULL,
		entry_type TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS journal_entries_user_handle_idx ON journal_entries (user_handle, created_at DESC);

	CREATE TABLE IF NOT EXISTS user_preferences (
		user_handle TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_handle, key)
	);

	CREATE TABLE IF NOT EXISTS storage_records (
		id TEXT PRIMARY KEY,
		user_handle TEXT NOT NULL,
		record_type TEXT NOT NULL DEFAULT '',
		record_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_handle, record_type, record_key)
	);
	CREATE INDEX IF NOT EXISTS storage_records_user_handle_idx ON storage_records (user_handle);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStorageError("apply schema", err)
	}
	return nil
}

// Close implements storage.Backend.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJournalEntry implements storage.Backend.
func (s *Store) CreateJournalEntry(ctx context.Context, userHandle, content, entryType string, tags []string, metadata []byte) (*storage.JournalEntry, error) {
	if metadata == nil {
		metadata = []byte("{}")
	}
	e := &storage.JournalEntry{
		ID:         uuid.NewString(),
		UserHandle: userHandle,
		Content:    content,
		EntryType:  entryType,
		Tags:       tags,
		Metadata:   metadata,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, user_handle, content, entry_type, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserHandle, e.Content, e.EntryType, encodeTags(e.Tags), string(e.Metadata), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewStorageError("create journal entry", err)
	}
	return e, nil
}

// ListJournalEntries implements storage.Backend. The tag filter is applied
// in Go rather than SQL since tags are stored as a JSON array in a single
// sqlite column; entry_type and since are pushed down to the query.
func (s *Store) ListJournalEntries(ctx context.Context, userHandle string, filter storage.JournalFilter, limit, offset int) ([]*storage.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_handle, content, entry_type, tags, metadata, created_at, updated_at
		FROM journal_entries
		WHERE user_handle = ?
		  AND deleted_at IS NULL
		  AND (? = '' OR entry_type = ?)
		  AND (? IS NULL OR created_at >= ?)
		ORDER BY created_at DESC`,
		userHandle,
		filter.EntryType, filter.EntryType,
		filter.Since, filter.Since,
	)
	if err != nil {
		return nil, errors.NewStorageError("list journal entries", err)
	}
	defer rows.Close()

	var matched []*storage.JournalEntry
	for rows.Next() {
		var e storage.JournalEntry
		var tags, metadata string
		if err := rows.Scan(&e.ID, &e.UserHandle, &e.Content, &e.EntryType, &tags, &metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.NewStorageError("scan journal entry", err)
		}
		e.Tags = decodeTags(tags)
		e.Metadata = []byte(metadata)
		if filter.Tag != "" && !hasTag(e.Tags, filter.Tag) {
			continue
		}
		matched = append(matched, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("list journal entries", err)
	}

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// GetJournalEntry implements storage.Backend.
func (s *Store) GetJournalEntry(ctx context.Context, userHandle, id string) (*storage.JournalEntry, error) {
	var e storage.JournalEntry
	var tags, metadata string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_handle, content, entry_type, tags, metadata, created_at, updated_at
		FROM journal_entries WHERE user_handle = ? AND id = ? AND deleted_at IS NULL`,
		userHandle, id,
	).Scan(&e.ID, &e.UserHandle, &e.Content, &e.EntryType, &tags, &metadata, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("journal entry %q", id), err)
	}
	if err != nil {
		return nil, errors.NewStorageError("get journal entry", err)
	}
	e.Tags = decodeTags(tags)
	e.Metadata = []byte(metadata)
	return &e, nil
}

// DeleteJournalEntry implements storage.Backend. Below the enterprise
// tier, the row is marked deleted rather than removed (spec §4.5
// Guarantees), to be purged later by a retention job.
func (s *Store) DeleteJournalEntry(ctx context.Context, userHandle, id string, soft bool) error {
	var res sql.Result
	var err error
	if soft {
		res, err = s.db.ExecContext(ctx, `
			UPDATE journal_entries SET deleted_at = ? WHERE user_handle = ? AND id = ? AND deleted_at IS NULL`,
			s.now(), userHandle, id)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE user_handle = ? AND id = ?`, userHandle, id)
	}
	if err != nil {
		return errors.NewStorageError("delete journal entry", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("journal entry %q", id), nil)
	}
	return nil
}

// GetPreference implements storage.Backend.
func (s *Store) GetPreference(ctx context.Context, userHandle, key string) (*storage.Preference, error) {
	var p storage.Preference
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT user_handle, key, value, updated_at FROM user_preferences WHERE user_handle = ? AND key = ?`, userHandle, key).
		Scan(&p.UserHandle, &p.Key, &value, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("preference %q", key), err)
	}
	if err != nil {
		return nil, errors.NewStorageError("get preference", err)
	}
	p.Value = []byte(value)
	return &p, nil
}

// SetPreference implements storage.Backend.
func (s *Store) SetPreference(ctx context.Context, userHandle, key string, value []byte) (*storage.Preference, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_handle, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_handle, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userHandle, key, string(value), now,
	)
	if err != nil {
		return nil, errors.NewStorageError("set preference", err)
	}
	return &storage.Preference{UserHandle: userHandle, Key: key, Value: value, UpdatedAt: now}, nil
}

// PutRecord implements storage.Backend.
func (s *Store) PutRecord(ctx context.Context, userHandle, recordType, recordKey string, payload []byte) (*storage.Record, error) {
	now := s.now()
	existing, err := s.GetRecord(ctx, userHandle, recordType, recordKey)
	id := uuid.NewString()
	created := now
	if err == nil && existing != nil {
		id = existing.ID
		created = existing.CreatedAt
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO storage_records (id, user_handle, record_type, record_key, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_handle, record_type, record_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		id, userHandle, recordType, recordKey, string(payload), created, now,
	)
	if err != nil {
		return nil, errors.NewStorageError("put record", err)
	}
	return &storage.Record{ID: id, UserHandle: userHandle, RecordType: recordType, RecordKey: recordKey, Payload: payload, CreatedAt: created, UpdatedAt: now}, nil
}

// GetRecord implements storage.Backend.
func (s *Store) GetRecord(ctx context.Context, userHandle, recordType, recordKey string) (*storage.Record, error) {
	var r storage.Record
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_handle, record_type, record_key, payload, created_at, updated_at
		FROM storage_records WHERE user_handle = ? AND record_type = ? AND record_key = ?`,
		userHandle, recordType, recordKey,
	).Scan(&r.ID, &r.UserHandle, &r.RecordType, &r.RecordKey, &payload, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("record %q", recordKey), err)
	}
	if err != nil {
		return nil, errors.NewStorageError("get record", err)
	}
	r.Payload = []byte(payload)
	return &r, nil
}

// ListRecords implements storage.Backend.
func (s *Store) ListRecords(ctx context.Context, userHandle, recordType, keyPrefix string, limit, offset int) ([]*storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_handle, record_type, record_key, payload, created_at, updated_at
		FROM storage_records
		WHERE user_handle = ?
		  AND (? = '' OR record_type = ?)
		  AND (? = '' OR record_key LIKE ? || '%')
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		userHandle, recordType, recordType, keyPrefix, keyPrefix, limit, offset,
	)
	if err != nil {
		return nil, errors.NewStorageError("list records", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		var r storage.Record
		var payload string
		if err := rows.Scan(&r.ID, &r.UserHandle, &r.RecordType, &r.RecordKey, &payload, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, errors.NewStorageError("scan record", err)
		}
		r.Payload = []byte(payload)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// DeleteRecord implements storage.Backend.
func (s *Store) DeleteRecord(ctx context.Context, userHandle, recordType, recordKey string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM storage_records WHERE user_handle = ? AND record_type = ? AND record_key = ?`,
		userHandle, recordType, recordKey)
	if err != nil {
		return errors.NewStorageError("delete record", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("record %q", recordKey), nil)
	}
	return nil
}

// GetUserStats implements storage.Backend.
func (s *Store) GetUserStats(ctx context.Context, userHandle string) (*storage.UserStats, error) {
	stats := &storage.UserStats{UserHandle: userHandle}
	var lastJournal, lastRecord sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(updated_at) FROM journal_entries WHERE user_handle = ? AND deleted_at IS NULL`, userHandle).
		Scan(&stats.JournalCount, &lastJournal); err != nil {
		return nil, errors.NewStorageError("get journal stats", err)
	}
	var recordBytes int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0), MAX(updated_at) FROM storage_records WHERE user_handle = ?`, userHandle).
		Scan(&stats.RecordCount, &recordBytes, &lastRecord); err != nil {
		return nil, errors.NewStorageError("get record stats", err)
	}
	stats.StorageBytes = recordBytes
	if lastJournal.Valid && lastJournal.Time.After(stats.LastActivityAt) {
		stats.LastActivityAt = lastJournal.Time
	}
	if lastRecord.Valid && lastRecord.Time.After(stats.LastActivityAt) {
		stats.LastActivityAt = lastRecord.Time
	}
	return stats, nil
}

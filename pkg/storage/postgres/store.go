// Package postgres is the production StorageBackend (spec §4.5), built on
// pgx/pgxpool with row-level security enforced through per-transaction
// session variables, plus an explicit user_handle predicate on every
// query as defense in depth against an RLS policy misconfiguration.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements storage.Backend against Postgres.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// Open connects to Postgres using dsn and returns a ready Store. Callers
// must call Migrate before using the store against a fresh database.
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.NewStorageError("parse postgres dsn", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.NewStorageError("connect to postgres", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Pool exposes the underlying connection pool to collaborators that need
// to run queries outside the Backend interface, such as the Postgres
// subscription registry, which reads the same database but is not itself
// part of the user-scoped, RLS-protected StorageBackend surface.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Health implements storage.Backend.
func (s *Store) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.NewStorageError("postgres health check", err)
	}
	return nil
}

// Migrate runs the embedded goose migrations against the configured
// database using a standard database/sql handle, since goose does not
// operate directly on a pgxpool.
func (s *Store) Migrate(ctx context.Context) error {
	cfg := s.pool.Config().ConnConfig
	db, err := goose.OpenDBWithDriver("pgx", cfg.ConnString())
	if err != nil {
		return errors.NewStorageError("open migration connection", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.NewStorageError("set goose dialect", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.NewStorageError("run migrations", err)
	}
	return nil
}

// Close implements storage.Backend.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// withTenantTx runs fn inside a transaction with app.user_handle set via
// SET LOCAL, so RLS policies scope every statement in fn to userHandle.
// fn must still filter by userHandle explicitly (spec §4.5 defense in
// depth) — withTenantTx only provides the RLS half.
func (s *Store) withTenantTx(ctx context.Context, userHandle string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.NewStorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_handle', $1, true)", userHandle); err != nil {
		return errors.NewStorageError("set tenant session variable", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.NewStorageError("commit transaction", err)
	}
	return nil
}

// CreateJournalEntry implements storage.Backend.
func (s *Store) CreateJournalEntry(ctx context.Context, userHandle, content, entryType string, tags []string, metadata []byte) (*storage.JournalEntry, error) {
	if metadata == nil {
		metadata = []byte("{}")
	}
	var entry storage.JournalEntry
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO journal_entries (user_handle, content, entry_type, tags, metadata)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, user_handle, content, entry_type, tags, metadata, created_at, updated_at`,
			userHandle, content, entryType, tags, metadata,
		).Scan(&entry.ID, &entry.UserHandle, &entry.Content, &entry.EntryType, &entry.Tags, &entry.Metadata, &entry.CreatedAt, &entry.UpdatedAt)
	})
	if err != nil {
		return nil, errors.NewStorageError("create journal entry", err)
	}
	return &entry, nil
}

// ListJournalEntries implements storage.Backend.
func (s *Store) ListJournalEntries(ctx context.Context, userHandle string, filter storage.JournalFilter, limit, offset int) ([]*storage.JournalEntry, error) {
	var entries []*storage.JournalEntry
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, user_handle, content, entry_type, tags, metadata, created_at, updated_at
			FROM journal_entries
			WHERE user_handle = $1
			  AND deleted_at IS NULL
			  AND ($2 = '' OR entry_type = $2)
			  AND ($3 = '' OR $3 = ANY(tags))
			  AND ($4::timestamptz IS NULL OR created_at >= $4)
			ORDER BY created_at DESC
			LIMIT $5 OFFSET $6`,
			userHandle, filter.EntryType, filter.Tag, filter.Since, limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e storage.JournalEntry
			if err := rows.Scan(&e.ID, &e.UserHandle, &e.Content, &e.EntryType, &e.Tags, &e.Metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
				return err
			}
			entries = append(entries, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.NewStorageError("list journal entries", err)
	}
	return entries, nil
}

// GetJournalEntry implements storage.Backend.
func (s *Store) GetJournalEntry(ctx context.Context, userHandle, id string) (*storage.JournalEntry, error) {
	var e storage.JournalEntry
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT id, user_handle, content, entry_type, tags, metadata, created_at, updated_at
			FROM journal_entries
			WHERE user_handle = $1 AND id = $2 AND deleted_at IS NULL`,
			userHandle, id,
		).Scan(&e.ID, &e.UserHandle, &e.Content, &e.EntryType, &e.Tags, &e.Metadata, &e.CreatedAt, &e.UpdatedAt)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError(fmt.Sprintf("journal entry %q", id), err)
		}
		return nil, errors.NewStorageError("get journal entry", err)
	}
	return &e, nil
}

// DeleteJournalEntry implements storage.Backend. Below the enterprise
// tier, the row is marked deleted rather than removed (spec §4.5
// Guarantees), to be purged later by a retention job.
func (s *Store) DeleteJournalEntry(ctx context.Context, userHandle, id string, soft bool) error {
	return s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		var tag pgconn.CommandTag
		var err error
		if soft {
			tag, err = tx.Exec(ctx, `
				UPDATE journal_entries SET deleted_at = now()
				WHERE user_handle = $1 AND id = $2 AND deleted_at IS NULL`,
				userHandle, id)
		} else {
			tag, err = tx.Exec(ctx, `DELETE FROM journal_entries WHERE user_handle = $1 AND id = $2`, userHandle, id)
		}
		if err != nil {
			return errors.NewStorageError("delete journal entry", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NewNotFoundError(fmt.Sprintf("journal entry %q", id), nil)
		}
		return nil
	})
}

// GetPreference implements storage.Backend.
func (s *Store) GetPreference(ctx context.Context, userHandle, key string) (*storage.Preference, error) {
	var p storage.Preference
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT user_handle, key, value, updated_at FROM user_preferences WHERE user_handle = $1 AND key = $2`,
			userHandle, key,
		).Scan(&p.UserHandle, &p.Key, &p.Value, &p.UpdatedAt)
	})
	if err == pgx.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("preference %q", key), err)
	}
	if err != nil {
		return nil, errors.NewStorageError("get preference", err)
	}
	return &p, nil
}

// SetPreference implements storage.Backend.
func (s *Store) SetPreference(ctx context.Context, userHandle, key string, value []byte) (*storage.Preference, error) {
	var p storage.Preference
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO user_preferences (user_handle, key, value, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (user_handle, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
			RETURNING user_handle, key, value, updated_at`,
			userHandle, key, value,
		).Scan(&p.UserHandle, &p.Key, &p.Value, &p.UpdatedAt)
	})
	if err != nil {
		return nil, errors.NewStorageError("set preference", err)
	}
	return &p, nil
}

// PutRecord implements storage.Backend.
func (s *Store) PutRecord(ctx context.Context, userHandle, recordType, recordKey string, payload []byte) (*storage.Record, error) {
	var r storage.Record
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO storage_records (user_handle, record_type, record_key, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_handle, record_type, record_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
			RETURNING id, user_handle, record_type, record_key, payload, created_at, updated_at`,
			userHandle, recordType, recordKey, payload,
		).Scan(&r.ID, &r.UserHandle, &r.RecordType, &r.RecordKey, &r.Payload, &r.CreatedAt, &r.UpdatedAt)
	})
	if err != nil {
		return nil, errors.NewStorageError("put record", err)
	}
	return &r, nil
}

// GetRecord implements storage.Backend.
func (s *Store) GetRecord(ctx context.Context, userHandle, recordType, recordKey string) (*storage.Record, error) {
	var r storage.Record
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT id, user_handle, record_type, record_key, payload, created_at, updated_at
			FROM storage_records WHERE user_handle = $1 AND record_type = $2 AND record_key = $3`,
			userHandle, recordType, recordKey,
		).Scan(&r.ID, &r.UserHandle, &r.RecordType, &r.RecordKey, &r.Payload, &r.CreatedAt, &r.UpdatedAt)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError(fmt.Sprintf("record %q", recordKey), err)
		}
		return nil, errors.NewStorageError("get record", err)
	}
	return &r, nil
}

// ListRecords implements storage.Backend. keyPrefix, when non-empty,
// restricts the listing to record_key values sharing that prefix (spec
// §4.5 get_records(user_handle, record_type, key_prefix?)).
func (s *Store) ListRecords(ctx context.Context, userHandle, recordType, keyPrefix string, limit, offset int) ([]*storage.Record, error) {
	var records []*storage.Record
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, user_handle, record_type, record_key, payload, created_at, updated_at
			FROM storage_records
			WHERE user_handle = $1
			  AND ($2 = '' OR record_type = $2)
			  AND ($3 = '' OR record_key LIKE $3 || '%')
			ORDER BY updated_at DESC LIMIT $4 OFFSET $5`,
			userHandle, recordType, keyPrefix, limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r storage.Record
			if err := rows.Scan(&r.ID, &r.UserHandle, &r.RecordType, &r.RecordKey, &r.Payload, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return err
			}
			records = append(records, &r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.NewStorageError("list records", err)
	}
	return records, nil
}

// DeleteRecord implements storage.Backend.
func (s *Store) DeleteRecord(ctx context.Context, userHandle, recordType, recordKey string) error {
	return s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM storage_records WHERE user_handle = $1 AND record_type = $2 AND record_key = $3`,
			userHandle, recordType, recordKey)
		if err != nil {
			return errors.NewStorageError("delete record", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NewNotFoundError(fmt.Sprintf("record %q", recordKey), nil)
		}
		return nil
	})
}

// GetUserStats implements storage.Backend.
func (s *Store) GetUserStats(ctx context.Context, userHandle string) (*storage.UserStats, error) {
	stats := &storage.UserStats{UserHandle: userHandle}
	err := s.withTenantTx(ctx, userHandle, func(tx pgx.Tx) error {
		var lastActivity *time.Time
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*), MAX(updated_at) FROM journal_entries WHERE user_handle = $1 AND deleted_at IS NULL`, userHandle).
			Scan(&stats.JournalCount, &lastActivity); err != nil {
			return err
		}
		if lastActivity != nil && lastActivity.After(stats.LastActivityAt) {
			stats.LastActivityAt = *lastActivity
		}
		var recordBytes int64
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(length(payload::text)), 0)
			FROM storage_records WHERE user_handle = $1`, userHandle).
			Scan(&stats.RecordCount, &recordBytes); err != nil {
			return err
		}
		stats.StorageBytes = recordBytes
		return nil
	})
	if err != nil {
		return nil, errors.NewStorageError("get user stats", err)
	}
	return stats, nil
}

package subscription

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fortunamind/persistent-mcp/pkg/errors"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
)

// PostgresRegistry is the production Registry, reading subscription rows
// directly from user_subscriptions. It has no RLS policy (spec "Persisted
// state"): this table is the registry's own source of truth, not
// per-user application data, so there is no user_handle to scope it by.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry builds a PostgresRegistry over an existing pool,
// such as the one backing pkg/storage/postgres.Store.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// Lookup implements Registry.
func (r *PostgresRegistry) Lookup(ctx context.Context, emailNormalized string) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT email_normalized, subscription_key, tier, status, expires_at, grace_until, created_at, updated_at
		FROM user_subscriptions
		WHERE email_normalized = $1`, emailNormalized)

	var rec Record
	var tierStr, statusStr string
	var expiresAt, graceUntil *time.Time
	if err := row.Scan(&rec.EmailNormalized, &rec.Key, &tierStr, &statusStr, &expiresAt, &graceUntil, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errors.NewStorageError("lookup subscription record", err)
	}
	rec.Tier = tier.Tier(tierStr)
	rec.Status = Status(statusStr)
	rec.ExpiresAt = expiresAt
	rec.GraceUntil = graceUntil
	return &rec, nil
}

package repo

import (
	"context"
	"errors"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStateRepo stores each store's state as one jsonb row.
type PostgresStateRepo struct {
	Pool *pgxpool.Pool
}

func NewPostgresStateRepo(pool *pgxpool.Pool) *PostgresStateRepo {
	return &PostgresStateRepo{Pool: pool}
}

func (r *PostgresStateRepo) Save(ctx context.Context, key string, raw []byte) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO storefront_state(key, payload, updated_at) VALUES($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`, key, raw)
	return err
}

func (r *PostgresStateRepo) Load(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := r.Pool.QueryRow(ctx, `SELECT payload FROM storefront_state WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

var _ domain.StateStorage = (*PostgresStateRepo)(nil)

// EnsureSchema creates the state table if it is missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS storefront_state (
  key text PRIMARY KEY,
  payload jsonb NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);`)
	return err
}

package migrations

import (
	"context"

	"solana-copy-trader/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	ms, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	return apply(ctx, ms, false, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	})
}

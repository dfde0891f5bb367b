package migrations

import (
	"context"
	"database/sql"
)

// RunSQLiteMigrations applies all embedded SQLite files in lexical order.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	ms, err := load(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}
	return apply(ctx, ms, false, func(ctx context.Context, script string) error {
		_, err := db.ExecContext(ctx, script)
		return err
	})
}

package storage

import (
	"context"
	"database/sql"
	"log/slog"
)

// Migration is one named schema change applied at startup.
//
// Migrations run in declaration order on every start and there is no ledger
// of applied migrations: a database file can be deleted while app settings
// survive, so a ledger would skip migrations the fresh database still needs.
// The consequence is that every statement must be safe to re-run; additive
// ALTER TABLE statements fail with "duplicate column name" on the second run,
// which is exactly the failure applyMigrations logs and ignores.
type Migration struct {
	Name string
	SQL  string
}

// applyMigrations runs each migration, logging and swallowing failures so a
// partially migrated database never blocks startup.
func applyMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger, table string, migrations []Migration) {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			logger.WarnContext(ctx, "migration failed", "table", table, "migration", m.Name, "error", err)
		}
	}
}

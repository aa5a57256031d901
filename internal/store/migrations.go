package store

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/streamstall/liveassist/migrations"
)

// runMigrations applies all pending migrations for the given dialect using
// goose. Schema versions are tracked in the database, so provisioning is
// idempotent across restarts and works identically for fresh and pre-existing
// stores.
func runMigrations(db *sql.DB, d Dialect) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect(d.Name()); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, d.Name()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

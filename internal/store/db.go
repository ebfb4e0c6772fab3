package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mediafetch/internal/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations brings the schema up to date. It is safe to call on every start.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

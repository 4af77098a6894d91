package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/platinummonkey/couchuser/pkg/storage"
)

// Migrations holds the schema for every supported driver, one directory each
//
//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var Migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for driver
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	switch driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations/"+driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

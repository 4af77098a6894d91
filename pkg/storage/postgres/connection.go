package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/couchuser/pkg/storage"
)

// Open connects to the durable store described by config, configures the
// pool, verifies the connection and applies migrations when AutoMigrate is set.
func Open(ctx context.Context, config storage.Config) (*sql.DB, error) {
	db, err := sql.Open(config.Driver, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", config.Driver, err)
	}

	configurePool(db, config)

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", config.Driver, err)
	}

	if config.AutoMigrate {
		if err := RunMigrations(ctx, db, config.Driver); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func configurePool(db *sql.DB, config storage.Config) {
	if config.Driver == storage.DriverSQLite {
		// SQLite has a single writer; one connection keeps transactions from
		// failing with SQLITE_BUSY and keeps in-memory databases shared.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return
	}

	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
}

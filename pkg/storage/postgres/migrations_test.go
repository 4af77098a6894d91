package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbeddedPerDriver(t *testing.T) {
	for _, dir := range []string{"migrations/postgres", "migrations/sqlite3"} {
		entries, err := fs.ReadDir(Migrations, dir)
		require.NoError(t, err, dir)
		assert.NotEmpty(t, entries, dir)
	}
}

func TestRunMigrations_UsesDriverDirectory(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), nil, "postgres"))
	assert.Equal(t, "migrations/postgres", gotDir)

	require.NoError(t, RunMigrations(context.Background(), nil, "sqlite3"))
	assert.Equal(t, "migrations/sqlite3", gotDir)
}

func TestRunMigrations_UnknownDriver(t *testing.T) {
	err := RunMigrations(context.Background(), nil, "mysql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migrations for driver")
}

func TestRunMigrations_PropagatesFailure(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("checksum mismatch")
	}

	err := RunMigrations(context.Background(), nil, "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

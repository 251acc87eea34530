package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// ErrDirtySchema means a previous migration stopped halfway and needs a
// manual fix before the service can start.
var ErrDirtySchema = errors.New("database schema is dirty")

// migrationLogger routes golang-migrate output through slog at debug level.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...interface{}) {
	slog.Debug("Migration", "message", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrationLogger) Verbose() bool {
	return slog.Default().Enabled(context.Background(), slog.LevelDebug)
}

func newMigrator(db *DB) (*migrate.Migrate, error) {
	schema, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded schema: %w", err)
	}

	// The driver shares db, so the migrator is never closed here.
	target, err := sqlite.WithInstance(db.DB.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", schema, "sqlite", target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrationLogger{}

	return m, nil
}

// RunMigrations brings the schema up to date and returns the resulting
// version. A dirty schema is reported as ErrDirtySchema without applying
// anything.
func RunMigrations(db *DB) (uint, bool, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return before, true, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to apply schema: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}

	if after != before {
		slog.Info("Database schema migrated", "from", before, "to", after)
	}

	return after, dirty, nil
}

package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration directions.
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// Migrate applies the embedded migrations in the given direction. It returns
// applied=false when there was nothing to do.
func Migrate(databaseURL, direction string) (applied bool, err error) {
	if direction != MigrateUp && direction != MigrateDown {
		return false, fmt.Errorf("invalid migration direction %q (must be \"up\" or \"down\")", direction)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return false, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(databaseURL))
	if err != nil {
		return false, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration %s failed: %w", direction, err)
	}
	return true, nil
}

// MigrateURL rewrites a postgres:// URL to the pgx5:// scheme the migrate driver expects.
func MigrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
)

// RunMigrations applies every pending migration in migrationsDir, a source
// URL such as "file://internal/infrastructure/persistence/postgres/migrations".
// An up-to-date schema is not an error.
func RunMigrations(dsn, migrationsDir string) error {
	return withMigrator(dsn, migrationsDir, "up", (*migrate.Migrate).Up)
}

// RunMigrationsDown reverts every applied migration. Tests use it to check
// that each down script undoes its up script.
func RunMigrationsDown(dsn, migrationsDir string) error {
	return withMigrator(dsn, migrationsDir, "down", (*migrate.Migrate).Down)
}

func withMigrator(dsn, migrationsDir, direction string, step func(*migrate.Migrate) error) error {
	m, err := migrate.New(migrationsDir, dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migrations %s: %w", migrationsDir, err)
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate %s: %w", direction, err)
	}
	return nil
}

package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// migrate applies every pending up migration for the store's dialect.
func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations/"+s.dialect.name)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var (
		driver database.Driver
		owned  *sql.DB
	)
	switch s.dialect.name {
	case DriverSQLite:
		// ":memory:" exists only on this handle, so migrate through it.
		// The migrate instance is not closed because that would close s.db.
		driver, err = sqlite3.WithInstance(s.db.DB, &sqlite3.Config{})
	case DriverPostgres:
		// The postgres driver pins a connection until Close, so it gets
		// its own handle.
		owned, err = sql.Open(DriverPostgres, s.dsn)
		if err != nil {
			return fmt.Errorf("open migration connection: %w", err)
		}
		driver, err = postgres.WithInstance(owned, &postgres.Config{})
	}
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.dialect.name, driver)
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return fmt.Errorf("migration instance: %w", err)
	}
	if owned != nil {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

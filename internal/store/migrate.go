package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies the versioned SQL migrations under migrations/ to
// databaseURL, tracking applied versions in the schema_migrations table.
// Runs after AutoMigrate: AutoMigrate owns struct-tag-driven table/column
// creation, this owns the extensions and indexes a gorm tag can't
// express, mirroring the split between alembic's autogenerated and
// hand-written revisions in original_source/alembic/versions.
func RunMigrations(databaseURL string) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("store: load embedded migrations: %w", err)
	}

	db, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("store: init migrator: %w", err)
	}
	defer db.Close()

	if err := db.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

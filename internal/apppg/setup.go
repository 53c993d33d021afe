package apppg

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Setup brings the builds schema up to the latest migration.
// Running it against an up-to-date database is a no-op.
func Setup(connectionString string) error {
	db, err := sql.Open("pgx", connectionString)
	if err != nil {
		return fmt.Errorf("apppg.Setup: %w", err)
	}
	defer db.Close()

	if err = migrateUp(db); err != nil {
		return fmt.Errorf("apppg.Setup: %w", err)
	}
	return nil
}

//go:embed migrations/*.sql
var migrations embed.FS

func migrationsFS() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS(), ".")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}

	target, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "web2app_migrations"})
	if err != nil {
		return fmt.Errorf("migrations target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return err
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

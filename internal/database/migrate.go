package database

import (
	"database/sql"
	"embed"

	// registers the "postgres" database/sql driver, used only for the
	// migration runner so a bad migration can never share a connection
	// (or a stuck transaction) with the runtime pgx pool.
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/eliadvertman/segctl/internal/config"
	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending goose migration embedded under migrations/,
// over its own lib/pq connection. DB schema management is explicitly out of
// the Job Reconciliation Engine's core scope (spec Non-goals), but the
// service still needs a repeatable way to stand up its own schema at
// startup.
func Migrate(cfg config.DatabaseConfig) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindInternal, err, "opening migration connection")
	}
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return taxerrors.Wrap(taxerrors.KindInternal, err, "setting goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return taxerrors.Wrap(taxerrors.KindInternal, err, "applying migrations")
	}
	return nil
}

// MigrationStatus reports the current migration version, used by the
// Engine Host's health endpoint to confirm schema readiness.
func MigrationStatus(db *sql.DB) (int64, error) {
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, taxerrors.Wrap(taxerrors.KindInternal, err, "reading migration version")
	}
	return version, nil
}

// Package database owns the Record Store's physical connection: a
// database/sql pool driven by the pgx/v5 stdlib adapter and wrapped in
// sqlx for struct scanning, plus the goose-managed schema migrations.
package database

import (
	"context"
	"database/sql"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"

	// registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/eliadvertman/segctl/internal/config"
	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// Connect opens a pooled connection to Postgres and verifies it with Ping.
// It returns a ClientMalformed error if cfg fails validation before ever
// touching the network, matching the teacher's "invalid database
// configuration" fail-fast behavior.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log logr.Logger) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "invalid database configuration")
	}

	db, err := sqlx.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, taxerrors.Wrap(taxerrors.KindInternal, err, "opening database pool")
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.StaleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, taxerrors.Wrap(taxerrors.KindUnavailable, err, "connecting to database")
	}

	log.Info("database pool established", "host", cfg.Host, "database", cfg.Database, "maxConnections", cfg.MaxConnections)
	return db, nil
}

// Reconnect closes the existing pool (if any) and opens a fresh one. Bound
// to a DatabaseConfig and passed as pkg/store.Store's reopen strategy, this
// is what a Monitor's tick falls back to when its first store operation of
// the tick fails with an Unavailable error (spec §4.6 step 1).
func Reconnect(ctx context.Context, old *sqlx.DB, cfg config.DatabaseConfig, log logr.Logger) (*sqlx.DB, error) {
	if old != nil {
		_ = old.Close()
	}
	return Connect(ctx, cfg, log)
}

// Healthy reports whether a ping against db currently succeeds, used by the
// Engine Host's health endpoint (spec §6).
func Healthy(ctx context.Context, db *sql.DB) bool {
	if db == nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

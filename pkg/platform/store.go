package platform

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/txn2/gamedna/pkg/configstore"
	"github.com/txn2/gamedna/pkg/configstore/postgres"
	"github.com/txn2/gamedna/pkg/database/migrate"
	"github.com/txn2/gamedna/pkg/health"
)

// driverName is registered by lib/pq, imported through the postgres store.
const driverName = "postgres"

// sqlOpen is replaced in tests.
var sqlOpen = sql.Open

// OpenStore selects and opens the store backend once at startup. The
// returned probe reports backend reachability for readiness checks and is
// nil for the memory backend.
//
// When the database cannot be reached and fallback is enabled the memory
// store is returned instead. Migration failures are always fatal.
func OpenStore(ctx context.Context, cfg DatabaseConfig) (configstore.Store, health.Probe, error) {
	if cfg.IsMemory() {
		slog.Info("using in-memory config store")
		store, err := instrument(configstore.NewMemoryStore())
		return store, nil, err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		if !cfg.useFallback() {
			return nil, nil, err
		}
		slog.Warn("database unavailable, falling back to in-memory config store", "error", err)
		store, ierr := instrument(configstore.NewMemoryStore())
		return store, nil, ierr
	}

	if cfg.migrateOnStart() {
		if err := runMigrations(ctx, db, cfg); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	store, err := instrument(postgres.New(db))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	slog.Info("using database config store",
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns)
	return store, db.PingContext, nil
}

// openDB opens and pings the database. Failures wrap
// configstore.ErrUnavailable.
func openDB(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sqlOpen(driverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %w", configstore.ErrUnavailable, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w: %w", configstore.ErrUnavailable, err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB, cfg DatabaseConfig) error {
	if cfg.MigrateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MigrateTimeout)
		defer cancel()
	}
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func instrument(store configstore.Store) (configstore.Store, error) {
	instrumented, err := configstore.Instrument(store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("instrumenting store: %w", err)
	}
	return instrumented, nil
}

// Package migrate applies the schema migrations for the config store.
//
// Migration files follow the golang-migrate naming scheme
// (NNNNNN_name.up.sql / NNNNNN_name.down.sql) and are read through its iofs
// source driver. Applied units are recorded by name in schema_migrations;
// each pending unit runs in its own transaction together with that record.
// Only the Up half of a unit is ever executed.
//
// Every transaction that writes bookkeeping first takes a transaction-scoped
// advisory lock, so concurrent runners against one database serialize and
// a unit applied by another runner is skipped.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// lockKey identifies the migration advisory lock ("gamedna" in ASCII).
const lockKey int64 = 0x67616d65646e61

const lockStmt = `SELECT pg_advisory_xact_lock($1)`

// Unit is one named migration.
type Unit struct {
	Name string
	Up   string
	Down string
}

// UnitStatus reports whether a unit has been applied.
type UnitStatus struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Units returns the embedded migration units in order.
func Units() ([]Unit, error) {
	return Load(migrations, migrationsDir)
}

// Load reads migration units from dir in fsys.
func Load(fsys fs.FS, dir string) ([]Unit, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("opening migration source: %w", err)
	}
	defer func() { _ = src.Close() }()

	var units []Unit
	version, err := src.First()
	for err == nil {
		unit, readErr := readUnit(src, version)
		if readErr != nil {
			return nil, readErr
		}
		units = append(units, unit)
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	return units, nil
}

func readUnit(src source.Driver, version uint) (Unit, error) {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return Unit{}, fmt.Errorf("reading up migration %d: %w", version, err)
	}
	up, err := readAll(r)
	if err != nil {
		return Unit{}, fmt.Errorf("reading up migration %d: %w", version, err)
	}

	unit := Unit{Name: fmt.Sprintf("%06d_%s", version, identifier), Up: up}

	r, _, err = src.ReadDown(version)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return unit, nil
	case err != nil:
		return Unit{}, fmt.Errorf("reading down migration %d: %w", version, err)
	}
	if unit.Down, err = readAll(r); err != nil {
		return Unit{}, fmt.Errorf("reading down migration %d: %w", version, err)
	}
	return unit, nil
}

func readAll(r io.ReadCloser) (string, error) {
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Run applies all pending embedded migrations.
// Already applied units are skipped, so Run is safe to call on every start.
func Run(ctx context.Context, db *sql.DB) error {
	units, err := Units()
	if err != nil {
		return err
	}

	applied, err := Apply(ctx, db, units)
	if err != nil {
		return err
	}

	slog.Info("database migrations complete", "applied", applied, "total", len(units))
	return nil
}

// Apply runs every unit not yet recorded in schema_migrations, in name
// order, and returns how many were applied. A failing unit is rolled back
// and stops the run. Units recorded by a concurrent runner in the meantime
// are skipped.
func Apply(ctx context.Context, db *sql.DB, units []Unit) (int, error) {
	if err := validate(units); err != nil {
		return 0, err
	}

	done, err := appliedUnits(ctx, db)
	if err != nil {
		return 0, err
	}

	pending := slices.Clone(units)
	slices.SortFunc(pending, func(a, b Unit) int { return strings.Compare(a.Name, b.Name) })

	count := 0
	for _, unit := range pending {
		if _, ok := done[unit.Name]; ok {
			continue
		}
		applied, err := applyUnit(ctx, db, unit)
		if err != nil {
			return count, err
		}
		if !applied {
			slog.Info("migration applied concurrently, skipping", "name", unit.Name)
			continue
		}
		slog.Info("applied migration", "name", unit.Name)
		count++
	}
	return count, nil
}

// Status lists the embedded units and whether each has been applied.
func Status(ctx context.Context, db *sql.DB) ([]UnitStatus, error) {
	units, err := Units()
	if err != nil {
		return nil, err
	}

	done, err := appliedUnits(ctx, db)
	if err != nil {
		return nil, err
	}

	statuses := make([]UnitStatus, 0, len(units))
	for _, unit := range units {
		at, ok := done[unit.Name]
		statuses = append(statuses, UnitStatus{Name: unit.Name, Applied: ok, AppliedAt: at})
	}
	return statuses, nil
}

func validate(units []Unit) error {
	seen := make(map[string]struct{}, len(units))
	for _, unit := range units {
		if unit.Name == "" {
			return errors.New("migration unit has no name")
		}
		if strings.TrimSpace(unit.Up) == "" {
			return fmt.Errorf("migration %s has an empty up script", unit.Name)
		}
		if _, dup := seen[unit.Name]; dup {
			return fmt.Errorf("duplicate migration %s", unit.Name)
		}
		seen[unit.Name] = struct{}{}
	}
	return nil
}

// appliedUnits ensures the bookkeeping table exists and returns the recorded
// units with their apply time.
func appliedUnits(ctx context.Context, db *sql.DB) (map[string]time.Time, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	done := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var at time.Time
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		done[name] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating applied migrations: %w", err)
	}
	return done, nil
}

// ensureTable creates schema_migrations under the advisory lock.
// CREATE TABLE IF NOT EXISTS is not safe against a concurrent create.
func ensureTable(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockStmt, lockKey); err != nil {
		return fmt.Errorf("locking schema_migrations: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// applyUnit runs unit under the advisory lock. It reports false when the
// unit was already recorded once the lock was held.
func applyUnit(ctx context.Context, db *sql.DB, unit Unit) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning migration %s: %w", unit.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockStmt, lockKey); err != nil {
		return false, fmt.Errorf("locking migration %s: %w", unit.Name, err)
	}

	var recorded bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, unit.Name,
	).Scan(&recorded)
	if err != nil {
		return false, fmt.Errorf("checking migration %s: %w", unit.Name, err)
	}
	if recorded {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, unit.Up); err != nil {
		return false, fmt.Errorf("applying migration %s: %w", unit.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, unit.Name); err != nil {
		return false, fmt.Errorf("recording migration %s: %w", unit.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing migration %s: %w", unit.Name, err)
	}
	return true, nil
}

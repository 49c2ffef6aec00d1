package platform

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/gamedna/pkg/configstore"
)

const testDSN = "postgres://app@db/gamedna"

// mockOpen routes sqlOpen to a sqlmock database for the duration of the test.
func mockOpen(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, driverName, driver)
		assert.Equal(t, testDSN, dsn)
		return db, nil
	}
	t.Cleanup(func() { sqlOpen = orig })
	return mock
}

func databaseConfig(fallback, migrateOnStart bool) DatabaseConfig {
	return DatabaseConfig{
		URL:             testDSN,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		UseFallback:     boolPtr(fallback),
		MigrateOnStart:  boolPtr(migrateOnStart),
		MigrateTimeout:  time.Second,
	}
}

func TestOpenStore_Memory(t *testing.T) {
	for _, url := range []string{"", "memory", "MEMORY"} {
		store, probe, err := OpenStore(context.Background(), DatabaseConfig{URL: url})
		require.NoError(t, err, url)
		assert.Equal(t, configstore.ModeMemory, store.Mode())
		assert.Nil(t, probe)
		assert.IsType(t, &configstore.InstrumentedStore{}, store)
		assert.NoError(t, store.Close())
	}
}

func TestOpenStore_Database(t *testing.T) {
	mock := mockOpen(t)
	mock.ExpectPing()

	store, probe, err := OpenStore(context.Background(), databaseConfig(true, false))
	require.NoError(t, err)
	assert.Equal(t, configstore.ModeDatabase, store.Mode())
	require.NotNil(t, probe)

	mock.ExpectPing().WillReturnError(errors.New("connection reset"))
	assert.EqualError(t, probe(context.Background()), "connection reset")

	mock.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenStore_RunsMigrations(t *testing.T) {
	mock := mockOpen(t)
	mock.ExpectPing()

	rows := sqlmock.NewRows([]string{"name", "applied_at"})
	for _, name := range []string{"000001_configs", "000002_config_versions", "000003_config_indexes"} {
		rows.AddRow(name, time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC))
	}
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT name, applied_at FROM schema_migrations").WillReturnRows(rows)

	store, _, err := OpenStore(context.Background(), databaseConfig(false, true))
	require.NoError(t, err)
	assert.Equal(t, configstore.ModeDatabase, store.Mode())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenStore_MigrationFailureIsFatal(t *testing.T) {
	mock := mockOpen(t)
	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()
	mock.ExpectClose()

	// Fallback does not apply to migration failures.
	_, _, err := OpenStore(context.Background(), databaseConfig(true, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running migrations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenStore_PingFailure(t *testing.T) {
	t.Run("fallback", func(t *testing.T) {
		mock := mockOpen(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()

		store, probe, err := OpenStore(context.Background(), databaseConfig(true, true))
		require.NoError(t, err)
		assert.Equal(t, configstore.ModeMemory, store.Mode())
		assert.Nil(t, probe)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no fallback", func(t *testing.T) {
		mock := mockOpen(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		mock.ExpectClose()

		_, _, err := OpenStore(context.Background(), databaseConfig(false, true))
		require.Error(t, err)
		assert.ErrorIs(t, err, configstore.ErrUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOpenStore_OpenFailure(t *testing.T) {
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) {
		return nil, errors.New("unknown driver")
	}
	t.Cleanup(func() { sqlOpen = orig })

	_, _, err := OpenStore(context.Background(), databaseConfig(false, false))
	assert.ErrorIs(t, err, configstore.ErrUnavailable)
}

//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/gamedna/pkg/configstore"
	"github.com/txn2/gamedna/pkg/configstore/storetest"
	"github.com/txn2/gamedna/pkg/database/migrate"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, migrate.Run(ctx, db))

	return connStr
}

// openStore returns a store on an emptied schema.
func openStore(t *testing.T, connStr string) *Store {
	t.Helper()
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE configs CASCADE`)
	require.NoError(t, err)
	return New(db)
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	connStr := startPostgres(t)

	t.Run("conformance", func(t *testing.T) {
		storetest.Run(t, func(t *testing.T) configstore.Store {
			return openStore(t, connStr)
		})
	})

	t.Run("concurrent updates keep versions gapless", func(t *testing.T) {
		s := openStore(t, connStr)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		cfg, err := s.Create(ctx, &configstore.Config{Name: "Busy"})
		require.NoError(t, err)

		const workers, iterations = 8, 10
		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range iterations {
					next := cfg.Clone()
					next.MaxPlayers = int32(w*iterations + i)
					_, _ = s.Update(ctx, next)
				}
			}(w)
		}
		wg.Wait()

		history, err := s.GetVersionHistory(ctx, cfg.ID)
		require.NoError(t, err)
		require.Len(t, history, workers*iterations+1)
		for i, v := range history {
			assert.Equal(t, int64(len(history)-i), v.VersionNumber)
		}
	})

	t.Run("delete cascades to versions", func(t *testing.T) {
		s := openStore(t, connStr)
		defer func() { _ = s.Close() }()
		ctx := context.Background()

		cfg, err := s.Create(ctx, &configstore.Config{Name: "Doomed"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, cfg.ID))

		var count int
		require.NoError(t, s.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM config_versions WHERE config_id = $1`, cfg.ID).Scan(&count))
		assert.Zero(t, count)
	})
}

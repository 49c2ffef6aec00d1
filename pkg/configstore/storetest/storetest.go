// Package storetest is a conformance suite for configstore.Store backends.
//
// Each backend runs the same behavioral checks, so the memory and database
// stores stay interchangeable:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) configstore.Store {
//			return configstore.NewMemoryStore()
//		})
//	}
package storetest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/gamedna/pkg/configstore"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) configstore.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, configstore.Store)
	}{
		{"CreateAssignsDefaults", testCreateAssignsDefaults},
		{"CreateDuplicateID", testCreateDuplicateID},
		{"ReadNotFound", testReadNotFound},
		{"UpdateAppendsVersions", testUpdateAppendsVersions},
		{"UpdateKeepsStoreOwnedFields", testUpdateKeepsStoreOwnedFields},
		{"UpdateNotFound", testUpdateNotFound},
		{"NilConfig", testNilConfig},
		{"DeleteRemovesHistory", testDeleteRemovesHistory},
		{"ListFilters", testListFilters},
		{"ListPagination", testListPagination},
		{"ListExtremePagination", testListExtremePagination},
		{"RollbackRestoresSnapshot", testRollbackRestoresSnapshot},
		{"RollbackNotFound", testRollbackNotFound},
		{"PublishLocks", testPublishLocks},
		{"CloneIsIndependent", testCloneIsIndependent},
		{"CloneNotFound", testCloneNotFound},
		{"ReturnedValuesAreCopies", testReturnedValuesAreCopies},
		{"RoundTrip", testRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })
			tt.fn(t, store)
		})
	}
}

func create(t *testing.T, s configstore.Store, cfg *configstore.Config) *configstore.Config {
	t.Helper()
	out, err := s.Create(context.Background(), cfg)
	require.NoError(t, err)
	return out
}

func versionNumbers(t *testing.T, s configstore.Store, id string) []int64 {
	t.Helper()
	history, err := s.GetVersionHistory(context.Background(), id)
	require.NoError(t, err)
	nums := make([]int64, 0, len(history))
	for _, v := range history {
		nums = append(nums, v.VersionNumber)
	}
	return nums
}

func testCreateAssignsDefaults(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	out := create(t, s, &configstore.Config{Name: "Test", Genre: "FPS", CreatedBy: "alice"})

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, configstore.DefaultVersion, out.Version)
	assert.False(t, out.CreatedAt.IsZero())
	assert.False(t, out.LastModified.Before(out.CreatedAt))
	assert.False(t, out.IsLocked)

	history, err := s.GetVersionHistory(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].VersionNumber)
	assert.Equal(t, out.ID, history[0].ConfigID)
	assert.Equal(t, "FPS", history[0].Data.Genre)
	assert.Equal(t, "alice", history[0].CreatedBy)

	got, err := s.Read(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", got.Name)
	assert.True(t, got.CreatedAt.Equal(out.CreatedAt))
}

func testCreateDuplicateID(t *testing.T, s configstore.Store) {
	out := create(t, s, &configstore.Config{ID: "fixed-id", Name: "First", Version: "2.0.0"})
	assert.Equal(t, "fixed-id", out.ID)
	assert.Equal(t, "2.0.0", out.Version)

	_, err := s.Create(context.Background(), &configstore.Config{ID: "fixed-id", Name: "Second"})
	require.ErrorIs(t, err, configstore.ErrConflict)

	got, err := s.Read(context.Background(), "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)
}

func testReadNotFound(t *testing.T, s configstore.Store) {
	_, err := s.Read(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, configstore.ErrNotFound)
}

func testUpdateAppendsVersions(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	cfg := create(t, s, &configstore.Config{Name: "Test"})

	for i := range 3 {
		next := cfg.Clone()
		next.MaxPlayers = int32(i + 2)
		var err error
		cfg, err = s.Update(ctx, next)
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{4, 3, 2, 1}, versionNumbers(t, s, cfg.ID))

	got, err := s.Read(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.MaxPlayers)
}

func testUpdateKeepsStoreOwnedFields(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	orig := create(t, s, &configstore.Config{Name: "Test", Version: "1.0.0", CreatedBy: "alice"})

	out, err := s.Update(ctx, &configstore.Config{
		ID:        orig.ID,
		Name:      "Renamed",
		CreatedAt: orig.CreatedAt.Add(-24 * time.Hour),
		IsLocked:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", out.Name)
	assert.True(t, out.CreatedAt.Equal(orig.CreatedAt))
	assert.False(t, out.IsLocked, "update cannot lock a config")
	assert.Equal(t, "alice", out.CreatedBy)
	assert.Equal(t, "1.0.0", out.Version)
	assert.False(t, out.LastModified.Before(out.CreatedAt))
}

func testUpdateNotFound(t *testing.T, s configstore.Store) {
	_, err := s.Update(context.Background(), &configstore.Config{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, configstore.ErrNotFound)
}

func testNilConfig(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, nil)
	assert.ErrorIs(t, err, configstore.ErrNilConfig)
	_, err = s.Update(ctx, nil)
	assert.ErrorIs(t, err, configstore.ErrNilConfig)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Create(canceled, nil)
	assert.ErrorIs(t, err, configstore.ErrNilConfig)
}

func testDeleteRemovesHistory(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	cfg := create(t, s, &configstore.Config{Name: "Doomed"})
	_, err := s.Update(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, cfg.ID))

	_, err = s.Read(ctx, cfg.ID)
	assert.ErrorIs(t, err, configstore.ErrNotFound)
	_, err = s.GetVersionHistory(ctx, cfg.ID)
	assert.ErrorIs(t, err, configstore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, cfg.ID), configstore.ErrNotFound)
}

func testListFilters(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	create(t, s, &configstore.Config{Name: "Space Shooter", Genre: "FPS", Tags: []string{"scifi", "pvp"}, CreatedAt: base})
	create(t, s, &configstore.Config{Name: "Dungeon Crawl", Genre: "RPG", Tags: []string{"fantasy", "coop"}, CreatedAt: base.Add(time.Minute)})
	create(t, s, &configstore.Config{Name: "Arena SHOOTER", Genre: "FPS", Tags: []string{"pvp"}, CreatedAt: base.Add(2 * time.Minute)})
	create(t, s, &configstore.Config{Name: "100% Done", Genre: "Puzzle", CreatedAt: base.Add(3 * time.Minute)})

	tests := []struct {
		name    string
		filters configstore.ListFilters
		want    []string
	}{
		{"no filters newest first", configstore.ListFilters{}, []string{"100% Done", "Arena SHOOTER", "Dungeon Crawl", "Space Shooter"}},
		{"genre", configstore.ListFilters{Genre: "FPS"}, []string{"Arena SHOOTER", "Space Shooter"}},
		{"name is case insensitive", configstore.ListFilters{NameContains: "shooter"}, []string{"Arena SHOOTER", "Space Shooter"}},
		{"name is literal", configstore.ListFilters{NameContains: "0%"}, []string{"100% Done"}},
		{"tags must all match", configstore.ListFilters{Tags: []string{"scifi", "pvp"}}, []string{"Space Shooter"}},
		{"filters combine", configstore.ListFilters{Genre: "FPS", Tags: []string{"pvp"}, NameContains: "arena"}, []string{"Arena SHOOTER"}},
		{"no match", configstore.ListFilters{Genre: "Racing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs, total, err := s.List(ctx, tt.filters, configstore.Pagination{})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)

			names := make([]string, 0, len(configs))
			for _, c := range configs {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func testListPagination(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 25 {
		create(t, s, &configstore.Config{
			Name:      fmt.Sprintf("config-%02d", i),
			Genre:     "RPG",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	create(t, s, &configstore.Config{Name: "other", Genre: "FPS"})

	filters := configstore.ListFilters{Genre: "RPG"}
	wantSizes := []int{10, 10, 5, 0}
	for i, want := range wantSizes {
		page := i + 1
		configs, total, err := s.List(ctx, filters, configstore.Pagination{Page: page, PageSize: 10})
		require.NoError(t, err, "page %d", page)
		assert.Equal(t, 25, total, "page %d", page)
		assert.NotNil(t, configs, "page %d", page)
		assert.Len(t, configs, want, "page %d", page)
	}

	first, _, err := s.List(ctx, filters, configstore.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "config-24", first[0].Name)
	last, _, err := s.List(ctx, filters, configstore.Pagination{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "config-00", last[len(last)-1].Name)
}

func testListExtremePagination(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	for i := range 3 {
		create(t, s, &configstore.Config{Name: fmt.Sprintf("config-%d", i)})
	}

	tests := []struct {
		name string
		page configstore.Pagination
		want int
	}{
		{"huge page size", configstore.Pagination{Page: 1, PageSize: 1 << 60}, 3},
		{"huge page", configstore.Pagination{Page: 1 << 62, PageSize: 4}, 0},
		{"max page and size", configstore.Pagination{Page: math.MaxInt, PageSize: math.MaxInt}, 0},
	}
	for _, tt := range tests {
		configs, total, err := s.List(ctx, configstore.ListFilters{}, tt.page)
		require.NoError(t, err, tt.name)
		assert.Equal(t, 3, total, tt.name)
		assert.NotNil(t, configs, tt.name)
		assert.Len(t, configs, tt.want, tt.name)
	}
}

func testRollbackRestoresSnapshot(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	orig := create(t, s, &configstore.Config{
		Name:             "Test",
		Genre:            "FPS",
		Tags:             []string{"a"},
		CustomProperties: map[string]string{"k": "v1"},
		CreatedBy:        "alice",
	})

	next := orig.Clone()
	next.Genre = "RPG"
	next.Tags = []string{"b"}
	next.CustomProperties = map[string]string{"k": "v2"}
	updated, err := s.Update(ctx, next)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	restored, err := s.RollbackToVersion(ctx, orig.ID, 1, "bob")
	require.NoError(t, err)

	assert.Equal(t, orig.ID, restored.ID)
	assert.Equal(t, "FPS", restored.Genre)
	assert.Equal(t, []string{"a"}, restored.Tags)
	assert.Equal(t, map[string]string{"k": "v1"}, restored.CustomProperties)
	assert.Equal(t, "bob", restored.CreatedBy)
	assert.True(t, restored.CreatedAt.Equal(orig.CreatedAt))
	assert.True(t, restored.LastModified.After(updated.LastModified))

	history, err := s.GetVersionHistory(ctx, orig.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].VersionNumber)
	assert.Equal(t, "FPS", history[0].Data.Genre)
	assert.Equal(t, "bob", history[0].CreatedBy)

	got, err := s.Read(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "FPS", got.Genre)
}

func testRollbackNotFound(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	_, err := s.RollbackToVersion(ctx, "missing", 1, "")
	require.ErrorIs(t, err, configstore.ErrNotFound)

	cfg := create(t, s, &configstore.Config{Name: "Test"})
	_, err = s.RollbackToVersion(ctx, cfg.ID, 7, "")
	require.ErrorIs(t, err, configstore.ErrNotFound)
	assert.Equal(t, []int64{1}, versionNumbers(t, s, cfg.ID))
}

func testPublishLocks(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	cfg := create(t, s, &configstore.Config{Name: "Test", Genre: "FPS"})
	_, err := s.Update(ctx, cfg)
	require.NoError(t, err)

	published, err := s.PublishVersion(ctx, cfg.ID, "carol")
	require.NoError(t, err)
	assert.True(t, published.IsLocked)
	assert.Equal(t, "carol", published.CreatedBy)
	assert.Equal(t, []int64{2, 1}, versionNumbers(t, s, cfg.ID), "publish adds no snapshot")

	_, err = s.PublishVersion(ctx, cfg.ID, "carol")
	require.ErrorIs(t, err, configstore.ErrConflict)

	attempt := cfg.Clone()
	attempt.Genre = "RPG"
	_, err = s.Update(ctx, attempt)
	require.ErrorIs(t, err, configstore.ErrLocked)

	_, err = s.RollbackToVersion(ctx, cfg.ID, 1, "carol")
	require.ErrorIs(t, err, configstore.ErrLocked)

	got, err := s.Read(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)
	assert.Equal(t, "FPS", got.Genre)
	assert.Equal(t, []int64{2, 1}, versionNumbers(t, s, cfg.ID))

	_, err = s.PublishVersion(ctx, "missing", "carol")
	assert.ErrorIs(t, err, configstore.ErrNotFound)
}

func testCloneIsIndependent(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	src := create(t, s, &configstore.Config{
		Name:            "Source",
		Version:         "3.1.0",
		Genre:           "RPG",
		Checksum:        "abc123",
		TargetPlatforms: []string{"pc", "console"},
		Tags:            []string{"fantasy"},
	})
	_, err := s.Update(ctx, src)
	require.NoError(t, err)
	_, err = s.PublishVersion(ctx, src.ID, "")
	require.NoError(t, err)

	clone, err := s.Clone(ctx, src.ID, "Copy", "dave")
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, "Copy", clone.Name)
	assert.Equal(t, "3.1.0", clone.Version)
	assert.Equal(t, "RPG", clone.Genre)
	assert.Equal(t, []string{"pc", "console"}, clone.TargetPlatforms)
	assert.False(t, clone.IsLocked)
	assert.Empty(t, clone.Checksum)
	assert.Equal(t, "dave", clone.CreatedBy)
	assert.Equal(t, []int64{1}, versionNumbers(t, s, clone.ID))

	next := clone.Clone()
	next.Genre = "Roguelike"
	_, err = s.Update(ctx, next)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 1}, versionNumbers(t, s, src.ID))
	assert.Equal(t, []int64{2, 1}, versionNumbers(t, s, clone.ID))

	got, err := s.Read(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "RPG", got.Genre)
}

func testCloneNotFound(t *testing.T, s configstore.Store) {
	_, err := s.Clone(context.Background(), "missing", "Copy", "dave")
	assert.ErrorIs(t, err, configstore.ErrNotFound)
}

func testReturnedValuesAreCopies(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	in := &configstore.Config{
		Name:             "Test",
		Tags:             []string{"a"},
		CustomProperties: map[string]string{"k": "v"},
	}
	out := create(t, s, in)

	in.Tags[0] = "mutated-input"
	in.CustomProperties["k"] = "mutated-input"
	out.Tags[0] = "mutated-output"
	out.CustomProperties["k"] = "mutated-output"
	out.Name = "mutated-output"

	got, err := s.Read(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", got.Name)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Equal(t, map[string]string{"k": "v"}, got.CustomProperties)

	got.Tags[0] = "mutated-read"
	history, err := s.GetVersionHistory(ctx, out.ID)
	require.NoError(t, err)
	history[0].Data.Tags[0] = "mutated-history"
	history[0].Data.CustomProperties["k"] = "mutated-history"

	again, err := s.GetVersionHistory(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again[0].Data.Tags)
	assert.Equal(t, map[string]string{"k": "v"}, again[0].Data.CustomProperties)

	page, _, err := s.List(ctx, configstore.ListFilters{}, configstore.Pagination{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, []string{"a"}, page[0].Tags)
}

func testRoundTrip(t *testing.T, s configstore.Store) {
	ctx := context.Background()
	cfg := create(t, s, &configstore.Config{Name: "Test", Genre: "FPS"})
	id := cfg.ID

	_, err := s.Update(ctx, &configstore.Config{ID: id, Genre: "RPG"})
	require.NoError(t, err)
	assert.Len(t, versionNumbers(t, s, id), 2)

	restored, err := s.RollbackToVersion(ctx, id, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "FPS", restored.Genre)
	assert.Len(t, versionNumbers(t, s, id), 3)

	published, err := s.PublishVersion(ctx, id, "")
	require.NoError(t, err)
	assert.True(t, published.IsLocked)

	_, err = s.Update(ctx, &configstore.Config{ID: id, Genre: "Racing"})
	assert.ErrorIs(t, err, configstore.ErrLocked)
}

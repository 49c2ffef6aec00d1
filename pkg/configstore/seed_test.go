package configstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeedYAML = `
configs:
  - id: starter-fps
    name: Starter FPS
    genre: FPS
    max_players: 16
    is_competitive: true
    target_platforms: [pc, console]
    tags: [starter, pvp]
    custom_properties:
      map: dust
  - name: Cozy Farm
    genre: Simulation
    time_scale: 0.5
    seasons_enabled: true
`

func TestParseSeed(t *testing.T) {
	configs, err := ParseSeed([]byte(testSeedYAML))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	fps := configs[0]
	assert.Equal(t, "starter-fps", fps.ID)
	assert.Equal(t, "Starter FPS", fps.Name)
	assert.Equal(t, int32(16), fps.MaxPlayers)
	assert.True(t, fps.IsCompetitive)
	assert.Equal(t, []string{"pc", "console"}, fps.TargetPlatforms)
	assert.Equal(t, map[string]string{"map": "dust"}, fps.CustomProperties)

	farm := configs[1]
	assert.Empty(t, farm.ID)
	assert.InDelta(t, 0.5, farm.TimeScale, 0.0001)
	assert.True(t, farm.SeasonsEnabled)
}

func TestParseSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"invalid yaml", "configs: [", "parsing seed"},
		{"missing name", "configs:\n  - genre: FPS\n", "name is required"},
		{"wrong type", "configs:\n  - name: x\n    max_players: lots\n", "decoding seed entry 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSeedYAML), 0o600))

	configs, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, configs, 2)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	configs, err := ParseSeed([]byte(testSeedYAML))
	require.NoError(t, err)

	created, err := Seed(ctx, store, configs)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = Seed(ctx, store, configs)
	require.NoError(t, err)
	assert.Zero(t, created)

	_, total, err := store.List(ctx, ListFilters{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// A config that only shares a name prefix does not count as seeded.
	farms, _, err := store.List(ctx, ListFilters{NameContains: "Cozy Farm"}, Pagination{})
	require.NoError(t, err)
	require.Len(t, farms, 1)
	farms[0].Name = "Cozy Farm Deluxe"
	_, err = store.Update(ctx, farms[0])
	require.NoError(t, err)

	created, err = Seed(ctx, store, configs)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	got, err := store.Read(ctx, "starter-fps")
	require.NoError(t, err)
	assert.Equal(t, "FPS", got.Genre)
}

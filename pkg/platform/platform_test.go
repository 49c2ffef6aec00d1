package platform

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/gamedna/pkg/configstore"
)

const testSeed = `
configs:
  - name: Cozy Farm
    genre: Simulation
    tags: [cozy]
  - name: Arena Shooter
    genre: FPS
    max_players: 16
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func localListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

// trackingStore records Close calls.
type trackingStore struct {
	configstore.Store
	closed bool
}

func (s *trackingStore) Close() error {
	s.closed = true
	return s.Store.Close()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background())
	assert.EqualError(t, err, "config is required")
}

func TestNew_OpensStoreFromConfig(t *testing.T) {
	p, err := New(context.Background(), WithConfig(testConfig(t)))
	require.NoError(t, err)
	assert.Equal(t, configstore.ModeMemory, p.Store().Mode())
	assert.Equal(t, ":8080", p.Addr())
	assert.NotNil(t, p.Config())
}

func TestPlatform_ServeAndStop(t *testing.T) {
	store := &trackingStore{Store: configstore.NewMemoryStore()}
	p, err := New(context.Background(),
		WithConfig(testConfig(t)),
		WithStore(store, nil),
		WithListener(localListener(t)),
	)
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	base := "http://" + p.Addr()

	code, body := get(t, base+"/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"backend":"memory"`)

	code, _ = get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Post(base+"/api/v1/configs", "application/json", //nolint:noctx // test
		strings.NewReader(`{"name":"Live"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, "draining", p.Checker().State())
	assert.True(t, store.closed)

	select {
	case err := <-p.Errors():
		t.Fatalf("unexpected serve error: %v", err)
	default:
	}
}

func TestPlatform_StartSeeds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.SeedFile = filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(cfg.Database.SeedFile, []byte(testSeed), 0o600))

	p, err := New(context.Background(), WithConfig(cfg), WithListener(localListener(t)))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	configs, total, err := p.Store().List(context.Background(), configstore.ListFilters{}, configstore.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	names := []string{configs[0].Name, configs[1].Name}
	assert.ElementsMatch(t, []string{"Cozy Farm", "Arena Shooter"}, names)
}

func TestPlatform_SeedFailureAbortsStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	store := &trackingStore{Store: configstore.NewMemoryStore()}
	p, err := New(context.Background(), WithConfig(cfg), WithStore(store, nil), WithListener(localListener(t)))
	require.NoError(t, err)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting seed")
	assert.True(t, store.closed, "store is released on failed start")
	assert.False(t, p.Checker().IsReady())
}

func TestPlatform_Handler(t *testing.T) {
	p, err := New(context.Background(), WithConfig(testConfig(t)))
	require.NoError(t, err)
	p.Checker().SetReady()

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/configs/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/configs", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Zero(t, list.Total)
}

func TestLogRequests_RecordsStatus(t *testing.T) {
	h := logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

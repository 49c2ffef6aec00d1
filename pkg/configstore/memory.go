package configstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-memory maps guarded by a single
// readers/writer lock. Values are deep-copied whenever they cross the store
// boundary, so callers never alias stored configs or snapshots.
type MemoryStore struct {
	mu       sync.RWMutex
	configs  map[string]*Config
	versions map[string][]*VersionSnapshot

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs:  make(map[string]*Config),
		versions: make(map[string][]*VersionSnapshot),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create persists a new config and its version-1 snapshot.
func (s *MemoryStore) Create(ctx context.Context, cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, NewError(OpCreate, "", ErrNilConfig)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpCreate, cfg.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cfg.Clone()
	PrepareCreate(stored, s.newID, s.now())
	if _, exists := s.configs[stored.ID]; exists {
		return nil, NewError(OpCreate, stored.ID, ErrConflict)
	}

	s.configs[stored.ID] = stored
	s.versions[stored.ID] = []*VersionSnapshot{
		newSnapshot(stored, 1, stored.CreatedAt, stored.CreatedBy),
	}
	return stored.Clone(), nil
}

// Read returns the config with the given ID.
func (s *MemoryStore) Read(ctx context.Context, id string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpRead, id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, NewError(OpRead, id, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// Update replaces an unlocked config and appends the next snapshot.
func (s *MemoryStore) Update(ctx context.Context, cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, NewError(OpUpdate, "", ErrNilConfig)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpUpdate, cfg.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.configs[cfg.ID]
	if !ok {
		return nil, NewError(OpUpdate, cfg.ID, ErrNotFound)
	}
	if existing.IsLocked {
		return nil, NewError(OpUpdate, cfg.ID, ErrLocked)
	}

	next := cfg.Clone()
	PrepareUpdate(next, existing, s.now())
	s.commitRevision(next, next.CreatedBy)
	return next.Clone(), nil
}

// Delete removes a config and its entire history.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return NewError(OpDelete, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[id]; !ok {
		return NewError(OpDelete, id, ErrNotFound)
	}
	delete(s.configs, id)
	delete(s.versions, id)
	return nil
}

// List returns one page of configs matching filters, newest first, and the
// total number of matches.
func (s *MemoryStore) List(ctx context.Context, filters ListFilters, page Pagination) ([]*Config, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, NewError(OpList, "", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*Config, 0, len(s.configs))
	for _, cfg := range s.configs {
		if filters.Matches(cfg) {
			matched = append(matched, cfg)
		}
	}
	slices.SortFunc(matched, compareNewestFirst)

	total := len(matched)
	page = page.Normalize()
	start := page.Offset()
	if start >= total {
		return []*Config{}, total, nil
	}
	end := min(start+page.PageSize, total)

	result := make([]*Config, 0, end-start)
	for _, cfg := range matched[start:end] {
		result = append(result, cfg.Clone())
	}
	return result, total, nil
}

// GetVersionHistory returns all snapshots of a config, newest first.
func (s *MemoryStore) GetVersionHistory(ctx context.Context, configID string) ([]*VersionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpHistory, configID, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.versions[configID]
	if !ok {
		return nil, NewError(OpHistory, configID, ErrNotFound)
	}

	history := make([]*VersionSnapshot, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		history = append(history, versions[i].Clone())
	}
	return history, nil
}

// RollbackToVersion restores a snapshot as the current state and records
// the restored content as a new version.
func (s *MemoryStore) RollbackToVersion(ctx context.Context, configID string, versionNumber int64, actor string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpRollback, configID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.configs[configID]
	if !ok {
		return nil, NewError(OpRollback, configID, ErrNotFound)
	}
	if existing.IsLocked {
		return nil, NewError(OpRollback, configID, ErrLocked)
	}

	idx := slices.IndexFunc(s.versions[configID], func(v *VersionSnapshot) bool {
		return v.VersionNumber == versionNumber
	})
	if idx < 0 {
		return nil, VersionNotFound(OpRollback, configID, versionNumber)
	}

	restored := PrepareRollback(s.versions[configID][idx].Data, existing, actor, s.now())
	s.commitRevision(restored, actor)
	return restored.Clone(), nil
}

// PublishVersion locks a config in place. It does not add a snapshot.
func (s *MemoryStore) PublishVersion(ctx context.Context, configID, actor string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpPublish, configID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[configID]
	if !ok {
		return nil, NewError(OpPublish, configID, ErrNotFound)
	}
	if cfg.IsLocked {
		return nil, NewError(OpPublish, configID, ErrConflict)
	}

	cfg.IsLocked = true
	cfg.LastModified = later(s.now(), cfg.CreatedAt)
	if actor != "" {
		cfg.CreatedBy = actor
	}
	return cfg.Clone(), nil
}

// Clone copies a config into a new unlocked config with its own history.
func (s *MemoryStore) Clone(ctx context.Context, id, newName, actor string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(OpClone, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.configs[id]
	if !ok {
		return nil, NewError(OpClone, id, ErrNotFound)
	}

	cloned := CloneAs(src, newName, actor, s.now())
	PrepareCreate(cloned, s.newID, cloned.CreatedAt)
	s.configs[cloned.ID] = cloned
	s.versions[cloned.ID] = []*VersionSnapshot{
		newSnapshot(cloned, 1, cloned.CreatedAt, actor),
	}
	return cloned.Clone(), nil
}

// Mode returns "memory".
func (*MemoryStore) Mode() string {
	return ModeMemory
}

// Close is a no-op; the store holds no external resources.
func (*MemoryStore) Close() error {
	return nil
}

// commitRevision stores cfg as current state and appends the next snapshot.
// The caller must hold the write lock.
func (s *MemoryStore) commitRevision(cfg *Config, actor string) {
	s.configs[cfg.ID] = cfg
	next := int64(len(s.versions[cfg.ID]) + 1)
	s.versions[cfg.ID] = append(s.versions[cfg.ID], newSnapshot(cfg, next, cfg.LastModified, actor))
}

// Matches reports whether cfg satisfies every set filter.
func (f ListFilters) Matches(cfg *Config) bool {
	if f.Genre != "" && cfg.Genre != f.Genre {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(cfg.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return cfg.HasTags(f.Tags)
}

// compareNewestFirst orders by CreatedAt descending, then ID ascending.
func compareNewestFirst(a, b *Config) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)

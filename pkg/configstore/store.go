// Package configstore provides versioned storage for game configurations.
//
// Every backend keeps the current state of each Config together with an
// append-only history of VersionSnapshots. Published configs are immutable,
// any prior version can be restored, and configs can be cloned into new
// independent entities. Two backends are provided: MemoryStore in this
// package and a PostgreSQL store in the postgres subpackage.
package configstore

import (
	"context"
	"math"
)

// Store modes reported by Mode.
const (
	ModeMemory   = "memory"
	ModeDatabase = "database"
)

// Store persists configs and their version history.
type Store interface {
	// Create persists a new config and its version-1 snapshot.
	Create(ctx context.Context, cfg *Config) (*Config, error)
	// Read returns the config with the given ID.
	Read(ctx context.Context, id string) (*Config, error)
	// Update replaces an unlocked config and appends the next snapshot.
	Update(ctx context.Context, cfg *Config) (*Config, error)
	// Delete removes a config and its entire history.
	Delete(ctx context.Context, id string) error
	// List returns one page of configs matching filters and the total match count.
	List(ctx context.Context, filters ListFilters, page Pagination) ([]*Config, int, error)

	// GetVersionHistory returns all snapshots of a config, newest first.
	GetVersionHistory(ctx context.Context, configID string) ([]*VersionSnapshot, error)
	// RollbackToVersion restores a snapshot as the current state and records it as a new version.
	RollbackToVersion(ctx context.Context, configID string, versionNumber int64, actor string) (*Config, error)
	// PublishVersion locks a config in place without adding a snapshot.
	PublishVersion(ctx context.Context, configID, actor string) (*Config, error)
	// Clone copies a config into a new unlocked config with its own history.
	Clone(ctx context.Context, id, newName, actor string) (*Config, error)

	// Mode returns the store mode: "memory" or "database".
	Mode() string
	// Close releases resources held by the store.
	Close() error
}

// ListFilters narrows List results. All set filters must match.
type ListFilters struct {
	Genre        string
	NameContains string
	Tags         []string
}

// Pagination selects one page of List results.
type Pagination struct {
	Page     int
	PageSize int
}

// Pagination defaults applied when values are zero or negative.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// MaxPageSize caps PageSize.
const MaxPageSize = 100

// Normalize returns p with defaults applied and PageSize capped at
// MaxPageSize.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	p.PageSize = min(p.PageSize, MaxPageSize)
	return p
}

// Offset returns the number of items preceding the page. It saturates at
// math.MaxInt, which is past the end of any result set.
func (p Pagination) Offset() int {
	n := p.Normalize()
	if n.Page-1 > math.MaxInt/n.PageSize {
		return math.MaxInt
	}
	return (n.Page - 1) * n.PageSize
}

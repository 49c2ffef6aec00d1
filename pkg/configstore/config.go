package configstore

import (
	"maps"
	"slices"
	"time"
)

// DefaultVersion is assigned to configs created without a version string.
const DefaultVersion = "0.1.0"

// Config is the current, mutable state of a game configuration.
//
// The store owns ID, CreatedAt, LastModified and IsLocked. Everything else is
// treated as an opaque payload and replaced wholesale on Update.
type Config struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	CreatedBy    string    `json:"created_by"`
	Checksum     string    `json:"checksum"`
	IsLocked     bool      `json:"is_locked"`

	Genre           string   `json:"genre,omitempty"`
	Camera          string   `json:"camera,omitempty"`
	Tone            string   `json:"tone,omitempty"`
	WorldScale      string   `json:"world_scale,omitempty"`
	TargetPlatforms []string `json:"target_platforms,omitempty"`
	PhysicsProfile  string   `json:"physics_profile,omitempty"`

	MaxPlayers     int32  `json:"max_players,omitempty"`
	IsCompetitive  bool   `json:"is_competitive,omitempty"`
	SupportsCoop   bool   `json:"supports_coop,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
	Monetization   string `json:"monetization,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	ESRBRating     string `json:"esrb_rating,omitempty"`

	TargetFPS       int32   `json:"target_fps,omitempty"`
	MaxDrawDistance float32 `json:"max_draw_distance,omitempty"`
	MaxEntities     int32   `json:"max_entities,omitempty"`
	MaxNPCCount     int32   `json:"max_npc_count,omitempty"`

	TimeScale       float32 `json:"time_scale,omitempty"`
	WeatherEnabled  bool    `json:"weather_enabled,omitempty"`
	SeasonsEnabled  bool    `json:"seasons_enabled,omitempty"`
	DayNightCycle   bool    `json:"day_night_cycle,omitempty"`
	PersistentWorld bool    `json:"persistent_world,omitempty"`

	NPCCount            int32  `json:"npc_count,omitempty"`
	AIEnabled           bool   `json:"ai_enabled,omitempty"`
	AIDifficultyScaling string `json:"ai_difficulty_scaling,omitempty"`

	HasCampaign   bool `json:"has_campaign,omitempty"`
	HasSideQuests bool `json:"has_side_quests,omitempty"`
	DynamicQuests bool `json:"dynamic_quests,omitempty"`

	Tags             []string          `json:"tags,omitempty"`
	CustomProperties map[string]string `json:"custom_properties,omitempty"`
}

// Clone returns a deep copy of c. Slices and maps are never shared between
// the original and the copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	dst := *c
	dst.TargetPlatforms = slices.Clone(c.TargetPlatforms)
	dst.Tags = slices.Clone(c.Tags)
	dst.CustomProperties = maps.Clone(c.CustomProperties)
	return &dst
}

// HasTags reports whether c carries every tag in want.
func (c *Config) HasTags(want []string) bool {
	for _, tag := range want {
		if !slices.Contains(c.Tags, tag) {
			return false
		}
	}
	return true
}

// VersionSnapshot is an immutable point-in-time copy of a Config.
type VersionSnapshot struct {
	ConfigID      string    `json:"config_id"`
	VersionNumber int64     `json:"version_number"`
	Data          *Config   `json:"data"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
}

// Clone returns a deep copy of the snapshot.
func (v *VersionSnapshot) Clone() *VersionSnapshot {
	if v == nil {
		return nil
	}
	dst := *v
	dst.Data = v.Data.Clone()
	return &dst
}

// newSnapshot captures cfg as version n.
func newSnapshot(cfg *Config, n int64, at time.Time, actor string) *VersionSnapshot {
	return &VersionSnapshot{
		ConfigID:      cfg.ID,
		VersionNumber: n,
		Data:          cfg.Clone(),
		Checksum:      cfg.Checksum,
		CreatedAt:     at,
		CreatedBy:     actor,
	}
}

// CloneAs builds the seed of a new, independent config from src. The result
// has no ID, a blank checksum, fresh timestamps and is always unlocked.
func CloneAs(src *Config, newName, actor string, now time.Time) *Config {
	dst := src.Clone()
	dst.ID = ""
	dst.Name = newName
	dst.CreatedBy = actor
	dst.Checksum = ""
	dst.IsLocked = false
	dst.CreatedAt = now
	dst.LastModified = now
	return dst
}

// PrepareCreate fills the store-owned defaults of a new config in place.
func PrepareCreate(cfg *Config, newID func() string, now time.Time) {
	if cfg.ID == "" {
		cfg.ID = newID()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	if cfg.LastModified.IsZero() || cfg.LastModified.Before(cfg.CreatedAt) {
		cfg.LastModified = cfg.CreatedAt
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
}

// PrepareUpdate turns next into the replacement for existing. Store-owned
// fields are carried over from existing.
func PrepareUpdate(next, existing *Config, now time.Time) {
	next.CreatedAt = existing.CreatedAt
	next.IsLocked = existing.IsLocked
	if next.CreatedBy == "" {
		next.CreatedBy = existing.CreatedBy
	}
	if next.Version == "" {
		next.Version = existing.Version
	}
	next.LastModified = later(now, existing.CreatedAt)
}

// PrepareRollback turns a snapshot payload into the restored current state.
func PrepareRollback(data *Config, existing *Config, actor string, now time.Time) *Config {
	restored := data.Clone()
	restored.ID = existing.ID
	restored.CreatedAt = existing.CreatedAt
	restored.LastModified = later(now, existing.CreatedAt)
	if actor != "" {
		restored.CreatedBy = actor
	}
	return restored
}

func later(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}

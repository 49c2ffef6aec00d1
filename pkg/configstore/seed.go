package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const seedPageSize = 100

// seedFile is the on-disk layout of a seed file.
type seedFile struct {
	Configs []map[string]any `yaml:"configs"`
}

// LoadSeedFile reads configs from a YAML file. Keys use the same snake_case
// names as the JSON encoding of Config.
func LoadSeedFile(path string) ([]*Config, error) {
	// #nosec G304 -- path is from service config, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML into configs.
func ParseSeed(data []byte) ([]*Config, error) {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	configs := make([]*Config, 0, len(sf.Configs))
	for i, raw := range sf.Configs {
		// YAML maps are re-encoded as JSON so Config keeps a single set of field tags.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding seed entry %d: %w", i, err)
		}
		var cfg Config
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("decoding seed entry %d: %w", i, err)
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("seed entry %d: name is required", i)
		}
		configs = append(configs, &cfg)
	}
	return configs, nil
}

// Seed creates every config that does not exist yet, so seeding is safe to
// repeat on every boot. Entries with an ID are matched by ID, the rest by
// exact name. It returns the number of configs created.
func Seed(ctx context.Context, store Store, configs []*Config) (int, error) {
	created := 0
	for _, cfg := range configs {
		exists, err := seeded(ctx, store, cfg)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		out, err := store.Create(ctx, cfg)
		if err != nil {
			return created, fmt.Errorf("seeding config %q: %w", cfg.Name, err)
		}
		slog.Debug("seeded config", "id", out.ID, "name", out.Name)
		created++
	}
	return created, nil
}

func seeded(ctx context.Context, store Store, cfg *Config) (bool, error) {
	if cfg.ID != "" {
		_, err := store.Read(ctx, cfg.ID)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("checking seed config %s: %w", cfg.ID, err)
		}
		return false, nil
	}

	page := Pagination{Page: 1, PageSize: seedPageSize}
	for {
		matches, total, err := store.List(ctx, ListFilters{NameContains: cfg.Name}, page)
		if err != nil {
			return false, fmt.Errorf("checking seed config %q: %w", cfg.Name, err)
		}
		for _, m := range matches {
			if m.Name == cfg.Name {
				return true, nil
			}
		}
		if page.Page*page.PageSize >= total {
			return false, nil
		}
		page.Page++
	}
}

// Package platform wires the config store, HTTP API and health checks into a
// runnable service.
package platform

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/txn2/gamedna/pkg/logging"
)

// CurrentConfigVersion is the only supported config apiVersion.
const CurrentConfigVersion = "v1"

// MemoryURL selects the in-memory backend.
const MemoryURL = "memory"

// Config holds the complete service configuration.
type Config struct {
	APIVersion string         `yaml:"apiVersion"`
	Server     ServerConfig   `yaml:"server"`
	Database   DatabaseConfig `yaml:"database"`
	Logging    LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the store backend.
type DatabaseConfig struct {
	// URL is a PostgreSQL DSN, or "memory" (or empty) for the in-memory store.
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// UseFallback switches to the memory store when the database is
	// unreachable at startup.
	UseFallback    *bool         `yaml:"use_fallback"`
	MigrateOnStart *bool         `yaml:"migrate_on_start"`
	MigrateTimeout time.Duration `yaml:"migrate_timeout"`

	// SeedFile lists configs created at startup when missing.
	SeedFile string `yaml:"seed_file"`
}

// IsMemory reports whether the in-memory backend is selected.
func (d DatabaseConfig) IsMemory() bool {
	return d.URL == "" || strings.EqualFold(d.URL, MemoryURL)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	File      string `yaml:"file"`
	AddSource bool   `yaml:"add_source"`
}

// Options converts the config to logger options.
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:     l.Level,
		Format:    l.Format,
		File:      l.File,
		AddSource: l.AddSource,
	}
}

// LoadConfig loads configuration from a YAML file. An empty path yields the
// defaults. Environment overrides are applied in both cases.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		// #nosec G304 -- path is from CLI args, controlled by admin
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		parsed, err := ParseConfig(data)
		if err != nil {
			return nil, err
		}
		cfg = *parsed
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// ParseConfig parses YAML config bytes after expanding ${VAR} references.
// Defaults are not applied.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.APIVersion != "" && cfg.APIVersion != CurrentConfigVersion {
		return nil, fmt.Errorf("unsupported config apiVersion %q; supported versions: %s",
			cfg.APIVersion, CurrentConfigVersion)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	var result *multierror.Error

	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.Database.URL = v
	}
	if v, ok := os.LookupEnv("DATABASE_USE_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("DATABASE_USE_FALLBACK: %w", err))
		} else {
			cfg.Database.UseFallback = &b
		}
	}
	if v, ok := os.LookupEnv("DATABASE_MAX_OPEN_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("DATABASE_MAX_OPEN_CONNS: %w", err))
		} else {
			cfg.Database.MaxOpenConns = n
		}
	}
	if v, ok := os.LookupEnv("SERVER_ADDRESS"); ok {
		cfg.Server.Address = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.Logging.File = v
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = MemoryURL
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Database.UseFallback == nil {
		cfg.Database.UseFallback = boolPtr(true)
	}
	if cfg.Database.MigrateOnStart == nil {
		cfg.Database.MigrateOnStart = boolPtr(true)
	}
	if cfg.Database.MigrateTimeout == 0 {
		cfg.Database.MigrateTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logging.FormatConsole
	}
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Address == "" {
		result = multierror.Append(result, errors.New("server.address is required"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		result = multierror.Append(result, errors.New("server timeouts must not be negative"))
	}

	if c.Database.MaxOpenConns < 0 {
		result = multierror.Append(result, errors.New("database.max_open_conns must not be negative"))
	}
	if c.Database.MaxIdleConns < 0 {
		result = multierror.Append(result, errors.New("database.max_idle_conns must not be negative"))
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		result = multierror.Append(result, errors.New("database.max_idle_conns must not exceed max_open_conns"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format %q must be %s or %s",
			c.Logging.Format, logging.FormatConsole, logging.FormatJSON))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// useFallback reports whether the memory fallback is enabled.
func (d DatabaseConfig) useFallback() bool {
	return d.UseFallback == nil || *d.UseFallback
}

func (d DatabaseConfig) migrateOnStart() bool {
	return d.MigrateOnStart == nil || *d.MigrateOnStart
}

func boolPtr(b bool) *bool {
	return &b
}

// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/vmunix/stowaway/internal/modules"
)

// Config is the root configuration structure.
type Config struct {
	Log       LogConfig               `toml:"log"`
	Storage   StorageConfig           `toml:"storage"`
	Downloads DownloadsConfig         `toml:"downloads"`
	HLS       HLSConfig               `toml:"hls"`
	Quota     QuotaConfig             `toml:"quota"`
	Modules   map[string]ModuleConfig `toml:"modules"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type StorageConfig struct {
	Root        string   `toml:"root"`
	LegacyRoots []string `toml:"legacy_roots"`
	TempDir     string   `toml:"temp_dir"`
	Database    string   `toml:"database"`
}

type DownloadsConfig struct {
	MaxConcurrent    int               `toml:"max_concurrent"`
	Quality          string            `toml:"quality"`
	UserAgent        string            `toml:"user_agent"`
	RememberStrategy bool              `toml:"remember_strategy"`
	Headers          map[string]string `toml:"headers"`
}

type HLSConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type QuotaConfig struct {
	// Limit is a human-readable size such as "20 GB". Empty disables the quota.
	Limit            string        `toml:"limit"`
	WarningThreshold float64       `toml:"warning_threshold"`
	CleanupThreshold float64       `toml:"cleanup_threshold"`
	AutoCleanup      bool          `toml:"auto_cleanup"`
	Interval         time.Duration `toml:"interval"`
	WatchedThreshold float64       `toml:"watched_threshold"`
}

// LimitBytes parses Limit. An empty limit is 0.
func (q QuotaConfig) LimitBytes() (int64, error) {
	if strings.TrimSpace(q.Limit) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(q.Limit)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

type ModuleConfig struct {
	Name        string            `toml:"name"`
	BaseURL     string            `toml:"base_url"`
	Async       bool              `toml:"async"`
	StreamAsync bool              `toml:"stream_async"`
	StreamAPI   string            `toml:"stream_api"`
	Selector    string            `toml:"selector"`
	Headers     map[string]string `toml:"headers"`
}

// ModuleRegistry builds the module registry from the [modules] tables.
func (c *Config) ModuleRegistry() *modules.Registry {
	ids := make([]string, 0, len(c.Modules))
	for id := range c.Modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	mods := make([]*modules.Module, 0, len(ids))
	for _, id := range ids {
		m := c.Modules[id]
		name := m.Name
		if name == "" {
			name = id
		}
		mods = append(mods, &modules.Module{
			ID:      id,
			Name:    name,
			BaseURL: m.BaseURL,
			Headers: m.Headers,
			Capabilities: modules.Capabilities{
				Async:       m.Async,
				StreamAsync: m.StreamAsync,
			},
			StreamAPI: m.StreamAPI,
			Selector:  m.Selector,
		})
	}
	return modules.NewRegistry(mods...)
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and applies
// defaults. Unresolved environment variables are still an error.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/downloads"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "./data/stowaway.db"
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = filepath.Join(os.TempDir(), "stowaway")
	}
	if c.Downloads.MaxConcurrent == 0 {
		c.Downloads.MaxConcurrent = 2
	}
	if c.Downloads.Quality == "" {
		c.Downloads.Quality = "best"
	}
	if c.HLS.RequestTimeout == 0 {
		c.HLS.RequestTimeout = 15 * time.Second
	}
	if c.Quota.WarningThreshold == 0 {
		c.Quota.WarningThreshold = 0.8
	}
	if c.Quota.CleanupThreshold == 0 {
		c.Quota.CleanupThreshold = 0.95
	}
	if c.Quota.WatchedThreshold == 0 {
		c.Quota.WatchedThreshold = 0.95
	}
	if c.Quota.Interval == 0 {
		c.Quota.Interval = 10 * time.Minute
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars replaces environment variable references and returns the
// references that could not be resolved. Unresolved references are left in
// place. With :- and :? an empty value counts as unset.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case ":-":
			if value == "" {
				return arg
			}
			return value
		case ":?":
			if value == "" {
				missing = append(missing, name+": "+arg)
				return match
			}
			return value
		default:
			if !ok {
				missing = append(missing, name)
				return match
			}
			return value
		}
	})
	return out, missing
}

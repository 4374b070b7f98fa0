package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default_config.toml
var defaultConfig string

// WriteDefault writes the commented example config to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	return writeFile(path, []byte(defaultConfig))
}

// Default returns the example config with environment references resolved
// and defaults applied.
func Default() (*Config, error) {
	content, missing := substituteEnvVars(defaultConfig)
	if len(missing) > 0 {
		return nil, &ConfigError{Path: "default", Missing: missing}
	}
	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Write encodes c as TOML to path. Comments from the example are lost.
func (c *Config) Write(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

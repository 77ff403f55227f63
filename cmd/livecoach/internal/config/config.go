// Package config loads the livecoach CLI configuration.
//
// Configuration lives in a single YAML file under os.UserConfigDir():
//
//	~/Library/Application Support/livecoach/config.yaml   (macOS)
//	~/.config/livecoach/config.yaml                       (Linux)
//	%AppData%/livecoach/config.yaml                       (Windows)
//
// Session history is stored separately under DataDir (defaults to a
// "data" directory next to the config file).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir     = "livecoach"
	configFile = "config.yaml"
)

// Config is the livecoach CLI configuration.
type Config struct {
	// Model is the coaching model identifier. Empty selects the default.
	Model string `yaml:"model,omitempty"`

	// SystemInstruction is the coaching persona sent on connect. Empty
	// selects the built-in persona in the configured Language.
	SystemInstruction string `yaml:"system_instruction,omitempty"`

	// Language is the coaching language for the built-in persona, as a
	// plain name such as "English" or "Spanish".
	Language string `yaml:"language,omitempty"`

	// APIKey authenticates against the Gemini Live API.
	APIKey string `yaml:"api_key,omitempty"`

	// ServerURL, when set, routes the session to a WebSocket endpoint
	// (such as the coach-devserver) instead of the Gemini Live API.
	ServerURL string `yaml:"server_url,omitempty"`

	// DataDir overrides where session history is stored.
	DataDir string `yaml:"data_dir,omitempty"`

	// Archive configures session export.
	Archive ArchiveConfig `yaml:"archive,omitempty"`

	// Dir is the directory the config was loaded from. Not serialized.
	Dir string `yaml:"-"`
}

// ArchiveConfig selects the export backend.
type ArchiveConfig struct {
	// Backend is "local" or "s3". Empty means local.
	Backend string `yaml:"backend,omitempty"`

	// Dir is the export directory for the local backend. Defaults to
	// "exports" under the config directory.
	Dir string `yaml:"dir,omitempty"`

	// Bucket and Prefix configure the s3 backend.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Dir returns the default configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Load reads the configuration from the default location. A missing
// config file yields a zero-value Config, not an error.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration from a specific directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}
	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Dir = dir
	return cfg, nil
}

// Save writes the configuration back to its directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.Dir, configFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, configFile)
}

// ResolveDataDir returns the session history directory, applying the
// default when unset.
func (c *Config) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(c.Dir, "data")
}

// ResolveArchiveDir returns the local export directory, applying the
// default when unset.
func (c *Config) ResolveArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(c.Dir, "exports")
}

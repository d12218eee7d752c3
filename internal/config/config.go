// Package config loads and validates the server configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the name of the configuration file.
	FileName = "raven.yaml"

	// DefaultAddr is the default server listen address.
	DefaultAddr = "localhost:3000"
)

// Config is the complete raven.yaml configuration.
type Config struct {
	// Addr is the address the server listens on.
	Addr string `yaml:"addr"`

	// Session configures live session lifecycle.
	Session SessionConfig `yaml:"session"`

	// Snapshot configures the session snapshot store.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Render configures markup serialization.
	Render RenderConfig `yaml:"render"`

	// Hydration configures client hydration behavior.
	Hydration HydrationConfig `yaml:"hydration"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	path string
}

// SessionConfig contains live session settings.
type SessionConfig struct {
	// ResumeWindow is how long a disconnected session can be resumed.
	ResumeWindow time.Duration `yaml:"resumeWindow"`

	// MaxSessions caps concurrent live sessions; 0 means unlimited.
	MaxSessions int `yaml:"maxSessions"`
}

// SnapshotConfig contains snapshot store settings.
type SnapshotConfig struct {
	// Backend is "memory" or "s3".
	Backend string `yaml:"backend"`

	// Bucket is the S3 bucket name (s3 backend only).
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every object key (s3 backend only).
	Prefix string `yaml:"prefix"`

	// MaxAge is how long snapshots are retained.
	MaxAge time.Duration `yaml:"maxAge"`
}

// RenderConfig contains markup serialization settings.
type RenderConfig struct {
	// ChunkSize is the streaming chunk size in bytes.
	ChunkSize int `yaml:"chunkSize"`
}

// HydrationConfig contains hydration settings.
type HydrationConfig struct {
	// BatchSize is the progressive hydration batch size.
	BatchSize int `yaml:"batchSize"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Addr: DefaultAddr,
		Session: SessionConfig{
			ResumeWindow: 30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Backend: "memory",
			MaxAge:  time.Hour,
		},
		Render: RenderConfig{
			ChunkSize: 8 * 1024,
		},
		Hydration: HydrationConfig{
			BatchSize: 64,
		},
		LogLevel: "info",
	}
}

// Load reads raven.yaml from the given directory. A missing file
// yields the defaults, not an error; a malformed file is an error.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.path = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path the config was loaded from, empty if defaults.
func (c *Config) Path() string {
	return c.path
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Session.ResumeWindow == 0 {
		c.Session.ResumeWindow = d.Session.ResumeWindow
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = d.Snapshot.Backend
	}
	if c.Snapshot.MaxAge == 0 {
		c.Snapshot.MaxAge = d.Snapshot.MaxAge
	}
	if c.Render.ChunkSize == 0 {
		c.Render.ChunkSize = d.Render.ChunkSize
	}
	if c.Hydration.BatchSize == 0 {
		c.Hydration.BatchSize = d.Hydration.BatchSize
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case "memory":
	case "s3":
		if c.Snapshot.Bucket == "" {
			return errors.New("config: s3 snapshot backend requires a bucket")
		}
	default:
		return fmt.Errorf("config: unknown snapshot backend %q", c.Snapshot.Backend)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}

	if c.Render.ChunkSize < 0 {
		return errors.New("config: render chunk size must be positive")
	}
	if c.Hydration.BatchSize < 0 {
		return errors.New("config: hydration batch size must be positive")
	}
	if c.Session.MaxSessions < 0 {
		return errors.New("config: max sessions must not be negative")
	}
	return nil
}

// Exists reports whether a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

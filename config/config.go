package config

import (
	"path/filepath"
	"runtime"
	"time"

	coretypes "github.com/projecteru2/core/types"

	"github.com/projecteru2/parcel/utils"
)

// Config holds global parcel configuration.
type Config struct {
	// RootDir is the base directory for persistent data.
	RootDir string `json:"root_dir" mapstructure:"root_dir"`
	// PoolSize bounds concurrent fetch work. Defaults to runtime.NumCPU().
	PoolSize int `json:"pool_size" mapstructure:"pool_size"`
	// FetchTimeoutSeconds is the overall timeout for a single distfile fetch.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds" mapstructure:"fetch_timeout_seconds"`
	// MaxFetchBytes caps the size of a single distfile download.
	MaxFetchBytes int64 `json:"max_fetch_bytes" mapstructure:"max_fetch_bytes"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir:             "/var/lib/parcel",
		PoolSize:            runtime.NumCPU(),
		FetchTimeoutSeconds: int((30 * time.Minute).Seconds()),
		MaxFetchBytes:       20 << 30, //nolint:mnd // 20 GiB
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.PoolSize <= 0 {
		c.PoolSize = runtime.NumCPU()
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = DefaultConfig().FetchTimeoutSeconds
	}
	if c.MaxFetchBytes <= 0 {
		c.MaxFetchBytes = DefaultConfig().MaxFetchBytes
	}
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// DistfilesDir is where fetched distributable files land.
func (c *Config) DistfilesDir() string { return filepath.Join(c.RootDir, "distfiles") }

// DistfilePath returns the final path for a fetched file.
func (c *Config) DistfilePath(filename string) string {
	return filepath.Join(c.DistfilesDir(), filename)
}

// TempDir holds in-flight downloads before they are atomically placed.
func (c *Config) TempDir() string { return filepath.Join(c.RootDir, "tmp") }

// DBDir holds the installed-package index and its lock file.
func (c *Config) DBDir() string { return filepath.Join(c.RootDir, "db") }

// EnsureDirs creates every directory parcel writes to.
func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(c.DistfilesDir(), c.TempDir(), c.DBDir())
}

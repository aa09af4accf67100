// Package hubconfig loads and validates the daemon's TOML configuration
// file, grounded on the original daemon's config.rs defaults and validation
// rules and loaded the teacher's way, through spf13/viper.
package hubconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DaemonConfig controls the RPC listener and logging.
type DaemonConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	LogLevel    string `mapstructure:"log_level"`
}

// CacheConfig controls the durable cache.
type CacheConfig struct {
	Path              string `mapstructure:"path"`
	MaxItemsPerStream int    `mapstructure:"max_items_per_stream"`
}

// ProviderConfig is one [providers.<id>] section.
type ProviderConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	SyncIntervalMinutes int           `mapstructure:"sync_interval_minutes"`
	Settings           map[string]any `mapstructure:"settings"`
}

// Config is the fully parsed, validated configuration tree.
type Config struct {
	Daemon    DaemonConfig               `mapstructure:"daemon"`
	Cache     CacheConfig                `mapstructure:"cache"`
	Providers map[string]ProviderConfig  `mapstructure:"providers"`
}

var allowedLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		Daemon: DaemonConfig{BindAddress: "127.0.0.1:3030", LogLevel: "info"},
		Cache:  CacheConfig{MaxItemsPerStream: 1000},
		Providers: map[string]ProviderConfig{},
	}
}

// DefaultConfigPath returns the OS-conventional per-user config file path,
// $XDG_CONFIG_HOME/scryhub/config.toml with the os.UserConfigDir fallback.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "scryhub", "config.toml"), nil
}

// Load reads and validates the configuration file at path. If path is empty,
// DefaultConfigPath is used; if the file does not exist, the built-in
// defaults are returned unmodified and no file is created.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("daemon.bind_address", cfg.Daemon.BindAddress)
	v.SetDefault("daemon.log_level", cfg.Daemon.LogLevel)
	v.SetDefault("cache.max_items_per_stream", cfg.Cache.MaxItemsPerStream)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate applies the same checks as the original daemon's
// Config::validate: the bind address must parse as host:port, the log level
// must be a known level, and every positive-integer field must be nonzero.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Daemon.BindAddress); err != nil {
		return fmt.Errorf("daemon.bind_address %q is not a valid host:port: %w", c.Daemon.BindAddress, err)
	}
	if !allowedLogLevels[c.Daemon.LogLevel] {
		return fmt.Errorf("daemon.log_level %q is not one of trace|debug|info|warn|error", c.Daemon.LogLevel)
	}
	if c.Cache.MaxItemsPerStream <= 0 {
		return fmt.Errorf("cache.max_items_per_stream must be positive, got %d", c.Cache.MaxItemsPerStream)
	}
	for id, p := range c.Providers {
		if p.SyncIntervalMinutes <= 0 {
			return fmt.Errorf("providers.%s.sync_interval_minutes must be positive, got %d", id, p.SyncIntervalMinutes)
		}
	}
	return nil
}

// CachePath returns the configured cache file path, falling back to
// $XDG_DATA_HOME/scryhub/cache.db when unset (and to os.UserCacheDir when
// XDG_DATA_HOME is not set either).
func (c Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scryhub", "cache.db"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(dir, "scryhub", "cache.db"), nil
}

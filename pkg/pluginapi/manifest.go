// Package pluginapi defines the wire types a plugin manifest and bytecode
// program are serialized as — the shared contract between the hub's plugin
// runtime (internal/pluginrt) and any tooling that produces plugins
// (cmd/hubctl). Grounded on the original daemon's fusabi-runtime manifest.rs
// and bytecode.rs.
package pluginapi

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// PluginType classifies what a plugin contributes.
type PluginType string

const (
	PluginTypeProvider  PluginType = "provider"
	PluginTypeAction    PluginType = "action"
	PluginTypeTheme     PluginType = "theme"
	PluginTypeExtension PluginType = "extension"
)

// Metadata is the [plugin] section of manifest.toml.
type Metadata struct {
	ID          string     `toml:"id"`
	Name        string     `toml:"name"`
	Version     string     `toml:"version"`
	Description string     `toml:"description"`
	Authors     []string   `toml:"authors"`
	License     string     `toml:"license"`
	Homepage    string     `toml:"homepage,omitempty"`
	Repository  string     `toml:"repository,omitempty"`
	Type        PluginType `toml:"plugin_type"`
	EntryPoint  string     `toml:"entry_point,omitempty"`
}

// ProviderSection is the optional [provider] section declared by
// plugin_type = "provider" manifests.
type ProviderSection struct {
	ID            string  `toml:"id"`
	DisplayName   string  `toml:"display_name"`
	Icon          string  `toml:"icon,omitempty"`
	HasFeeds      bool    `toml:"has_feeds"`
	HasCollections bool   `toml:"has_collections"`
	HasSavedItems bool    `toml:"has_saved_items"`
	HasCommunities bool   `toml:"has_communities"`
	OAuthProvider *string `toml:"oauth_provider,omitempty"`
}

// RateLimit is the optional [rate_limit] section.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
	MaxConcurrent     int     `toml:"max_concurrent,omitempty"`
	RetryDelayMS      int     `toml:"retry_delay_ms,omitempty"`
}

// Manifest is the fully parsed manifest.toml.
type Manifest struct {
	Plugin       Metadata          `toml:"plugin"`
	Capabilities []string          `toml:"capabilities"`
	Provider     *ProviderSection  `toml:"provider,omitempty"`
	RateLimit    *RateLimit        `toml:"rate_limit,omitempty"`
	Config       map[string]any    `toml:"config,omitempty"`
}

// ParseManifest parses a manifest.toml's contents.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate applies the same checks the original manifest.rs enforces: a
// non-empty id/name/version, and a provider section whenever plugin_type is
// "provider".
func (m Manifest) Validate() error {
	if m.Plugin.ID == "" {
		return fmt.Errorf("manifest: plugin.id is required")
	}
	if m.Plugin.Name == "" {
		return fmt.Errorf("manifest: plugin.name is required")
	}
	if m.Plugin.Version == "" {
		return fmt.Errorf("manifest: plugin.version is required")
	}
	if m.Plugin.Type == PluginTypeProvider && m.Provider == nil {
		return fmt.Errorf("manifest: plugin_type = \"provider\" requires a [provider] section")
	}
	return nil
}

// IsProvider reports whether this plugin registers a stream provider.
func (m Manifest) IsProvider() bool {
	return m.Plugin.Type == PluginTypeProvider
}

// EntryPoint returns the bytecode file name, defaulting to "plugin.fzb".
func (m Manifest) EntryPoint() string {
	if m.Plugin.EntryPoint != "" {
		return m.Plugin.EntryPoint
	}
	return "plugin.fzb"
}

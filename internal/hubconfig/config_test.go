package hubconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3030", cfg.Daemon.BindAddress)
}

func TestLoadParsesProviderSection(t *testing.T) {
	path := writeConfig(t, `
[daemon]
bind_address = "127.0.0.1:4040"
log_level = "debug"

[cache]
max_items_per_stream = 500

[providers.rss]
enabled = true
sync_interval_minutes = 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4040", cfg.Daemon.BindAddress)

	p, ok := cfg.Providers["rss"]
	require.True(t, ok, "expected providers.rss section")
	assert.Equal(t, 30, p.SyncIntervalMinutes)
	assert.True(t, p.Enabled)
}

func TestValidateRejectsBadBindAddress(t *testing.T) {
	cfg := Default()
	cfg.Daemon.BindAddress = "not-a-host-port"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Daemon.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroMaxItemsPerStream(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxItemsPerStream = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroSyncInterval(t *testing.T) {
	cfg := Default()
	cfg.Providers = map[string]ProviderConfig{"rss": {Enabled: true, SyncIntervalMinutes: 0}}
	assert.Error(t, cfg.Validate())
}

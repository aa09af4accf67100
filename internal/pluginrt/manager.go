package pluginrt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/pluginrt/loader"
	"github.com/raibid-labs/scryhub/pkg/pluginapi"
)

// Instance is one loaded plugin: its manifest, its VM, and the sandbox its
// VM's host calls are gated through.
type Instance struct {
	Manifest pluginapi.Manifest
	Dir      string
	Enabled  bool

	vm    *VM
	stats *Stats
}

// Manager owns every loaded plugin's lifecycle: discovery, loading,
// enabling/disabling and dispatching calls into them. Adapted from the
// teacher's internal/plugin Manager, generalized from its
// wasm/grpc-transport registry to this bytecode-VM registry.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	hostFor   func(pluginID string, caps domain.CapabilitySet) HostFunctions
	logs      *LogBuffer
}

// NewManager returns an empty Manager. hostFor builds the (ungated) host
// function surface for a freshly loaded plugin; Manager wraps it in a
// Sandbox using the plugin's declared capabilities before handing it to the
// VM.
func NewManager(hostFor func(pluginID string, caps domain.CapabilitySet) HostFunctions) *Manager {
	return &Manager{
		instances: make(map[string]*Instance),
		hostFor:   hostFor,
		logs:      NewLogBuffer(1000),
	}
}

// PluginNotFoundError aliases domain.PluginNotFoundError for callers that
// only import this package.
type PluginNotFoundError = domain.PluginNotFoundError

// LoadDiscovered loads every plugin loader.Discover finds, skipping (and not
// failing on) any whose bytecode fails to parse — a single bad plugin must
// not prevent the rest from loading.
func (m *Manager) LoadDiscovered() ([]error, error) {
	found, err := loader.Discover()
	if err != nil {
		return nil, err
	}
	return m.loadFound(found), nil
}

// LoadDiscoveredFrom scans a single directory (cmd/hubd's --plugin-dir flag)
// instead of the XDG search path LoadDiscovered uses.
func (m *Manager) LoadDiscoveredFrom(dir string) ([]error, error) {
	found, err := loader.DiscoverIn(dir)
	if err != nil {
		return nil, err
	}
	return m.loadFound(found), nil
}

func (m *Manager) loadFound(found []loader.Found) []error {
	var loadErrs []error
	for _, f := range found {
		if err := m.Load(f.Dir, f.Manifest); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("plugin %s: %w", f.Manifest.Plugin.ID, err))
		}
	}
	return loadErrs
}

// Load parses dir's bytecode entry point and registers the plugin, enabled
// by default.
func (m *Manager) Load(dir string, manifest pluginapi.Manifest) error {
	bcPath := filepath.Join(dir, manifest.EntryPoint())
	raw, err := os.ReadFile(bcPath)
	if err != nil {
		return fmt.Errorf("read bytecode %s: %w", bcPath, err)
	}
	program, err := pluginapi.LoadProgram(raw)
	if err != nil {
		return err
	}
	prog, err := NewProgram(program)
	if err != nil {
		return err
	}

	caps := domain.CapabilitySetFromStrings(manifest.Capabilities)
	stats := NewStats()
	host := NewSandbox(m.hostFor(manifest.Plugin.ID, caps), caps, stats)
	vm := New(prog, host)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[manifest.Plugin.ID] = &Instance{
		Manifest: manifest,
		Dir:      dir,
		Enabled:  true,
		vm:       vm,
		stats:    stats,
	}
	return nil
}

// Unregister removes a loaded plugin.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, id)
}

// Get returns a loaded plugin's manifest and enabled state.
func (m *Manager) Get(id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, &domain.PluginNotFoundError{PluginID: id}
	}
	return inst, nil
}

// List returns every loaded plugin's ID.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	return ids
}

// Enable/Disable toggle whether Call will dispatch into a loaded plugin
// without unloading it.
func (m *Manager) Enable(id string) error {
	return m.setEnabled(id, true)
}

func (m *Manager) Disable(id string) error {
	return m.setEnabled(id, false)
}

func (m *Manager) setEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return &domain.PluginNotFoundError{PluginID: id}
	}
	inst.Enabled = enabled
	return nil
}

// Call invokes a loaded, enabled plugin's named function (or its manifest
// entry point if fn is "").
func (m *Manager) Call(ctx context.Context, id, fn string, args []Value) (Value, error) {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &domain.PluginNotFoundError{PluginID: id}
	}
	if !inst.Enabled {
		return nil, fmt.Errorf("plugin %q is disabled", id)
	}
	if fn == "" {
		return inst.vm.Run(ctx, args...)
	}
	return inst.vm.Call(ctx, fn, args)
}

// Logs returns the manager's shared plugin log ring buffer.
func (m *Manager) Logs() *LogBuffer {
	return m.logs
}

// dirToPlugin returns the plugin ID currently loaded from dir, or "" if none.
func (m *Manager) dirToPlugin(dir string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, inst := range m.instances {
		if inst.Dir == dir {
			return id
		}
	}
	return ""
}

// WatchForChanges starts an fsnotify watch on every currently loaded
// plugin's directory and reloads a plugin whenever its manifest.toml or
// bytecode file changes on disk, so an operator can update a plugin without
// restarting the daemon. It returns once the watcher is set up; reload
// errors are logged rather than returned, matching LoadDiscovered's
// one-bad-plugin-must-not-stop-the-rest contract. The watcher stops when
// ctx is canceled.
func (m *Manager) WatchForChanges(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := loader.NewWatcher()
	if err != nil {
		return fmt.Errorf("pluginrt: start plugin watcher: %w", err)
	}

	m.mu.RLock()
	dirs := make([]string, 0, len(m.instances))
	for _, inst := range m.instances {
		dirs = append(dirs, inst.Dir)
	}
	m.mu.RUnlock()
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			logger.Warn("pluginrt: watch plugin dir failed", "dir", dir, "error", err)
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				dir := filepath.Dir(ev.Name)
				id := m.dirToPlugin(dir)
				if id == "" {
					continue
				}
				m.mu.RLock()
				inst, ok := m.instances[id]
				m.mu.RUnlock()
				if !ok {
					continue
				}
				manifest := inst.Manifest
				if raw, err := os.ReadFile(filepath.Join(inst.Dir, "manifest.toml")); err == nil {
					if parsed, err := pluginapi.ParseManifest(raw); err == nil {
						manifest = parsed
					}
				}
				if err := m.Load(inst.Dir, manifest); err != nil {
					logger.Warn("pluginrt: reload plugin failed", "plugin", id, "error", err)
					continue
				}
				logger.Info("pluginrt: reloaded plugin", "plugin", id)
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				logger.Warn("pluginrt: plugin watcher error", "error", err)
			}
		}
	}()
	return nil
}

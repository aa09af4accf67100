// Package loader discovers plugin directories on disk, ported in structure
// from the original daemon's discovery.rs: a user directory is scanned
// first, then system directories, then a built-in bundled directory, with
// the first directory to claim a plugin ID winning over any later
// duplicate.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/raibid-labs/scryhub/pkg/pluginapi"
)

// Found is one discovered plugin: its directory and parsed manifest.
type Found struct {
	Dir      string
	Manifest pluginapi.Manifest
}

// UserPluginsDir returns the per-user plugin directory,
// $XDG_DATA_HOME/scryhub/plugins with the os.UserHomeDir fallback.
func UserPluginsDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scryhub", "plugins"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "scryhub", "plugins"), nil
}

// SystemPluginsDirs returns every system-wide plugin directory to scan, in
// priority order: each entry of $XDG_DATA_DIRS, then the two hardcoded
// Unix-conventional fallbacks.
func SystemPluginsDirs() []string {
	var dirs []string
	if raw := os.Getenv("XDG_DATA_DIRS"); raw != "" {
		for _, d := range strings.Split(raw, ":") {
			if d != "" {
				dirs = append(dirs, filepath.Join(d, "scryhub", "plugins"))
			}
		}
	}
	dirs = append(dirs, "/usr/local/share/scryhub/plugins", "/usr/share/scryhub/plugins")
	return dirs
}

// BuiltinPluginsDir returns the directory bundled plugins ship in alongside
// the daemon binary itself — the lowest-priority tier, scanned after the
// user and system directories so a bundled plugin never shadows one the
// operator installed or updated.
func BuiltinPluginsDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "plugins"), nil
}

// Discover walks the user directory, then every system directory, then the
// built-in directory, in that order, and returns one Found entry per
// distinct plugin ID: the first directory to declare an ID wins, later
// duplicates are skipped (and logged at debug level).
func Discover() ([]Found, error) {
	userDir, err := UserPluginsDir()
	if err != nil {
		return nil, err
	}
	builtinDir, err := BuiltinPluginsDir()
	if err != nil {
		return nil, err
	}
	dirs := append([]string{userDir}, SystemPluginsDirs()...)
	dirs = append(dirs, builtinDir)
	return DiscoverIn(dirs...)
}

// DiscoverIn scans the given directories in order, applying the same
// first-directory-wins de-duplication as Discover. Used by cmd/hubd's
// --plugin-dir flag to scan a single operator-chosen directory instead of
// the XDG search path.
func DiscoverIn(dirs ...string) ([]Found, error) {
	return DiscoverInWithLogger(slog.Default(), dirs...)
}

// DiscoverInWithLogger is DiscoverIn with an explicit logger for the debug
// record a skipped duplicate plugin ID produces.
func DiscoverInWithLogger(logger *slog.Logger, dirs ...string) ([]Found, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seenDir := make(map[string]string)
	var found []Found
	for _, dir := range dirs {
		entries, err := discoverInDirectory(dir, seenDir, logger)
		if err != nil {
			return nil, err
		}
		found = append(found, entries...)
	}
	return found, nil
}

func discoverInDirectory(dir string, seenDir map[string]string, logger *slog.Logger) ([]Found, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin dir %s: %w", dir, err)
	}

	var found []Found
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, child.Name())
		manifestPath := filepath.Join(pluginDir, "manifest.toml")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read manifest %s: %w", manifestPath, err)
		}
		m, err := pluginapi.ParseManifest(data)
		if err != nil {
			// A malformed manifest shouldn't take down discovery of every
			// other plugin; it is surfaced by the caller's own logging.
			continue
		}
		if winner, dup := seenDir[m.Plugin.ID]; dup {
			logger.Debug("loader: skipping lower-priority duplicate plugin",
				"plugin", m.Plugin.ID, "skipped_dir", pluginDir, "kept_dir", winner)
			continue
		}
		seenDir[m.Plugin.ID] = pluginDir
		found = append(found, Found{Dir: pluginDir, Manifest: m})
	}
	return found, nil
}

// Watcher emits an event whenever a plugin directory's manifest.toml or
// bytecode file changes, so the manager can hot-reload it without a daemon
// restart.
type Watcher struct {
	fs *fsnotify.Watcher
}

// NewWatcher creates a Watcher that watches no directory yet. It does not
// itself call Discover — callers register directories via Add as they learn
// about them.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fs: fw}, nil
}

// Add watches a single plugin's directory for changes.
func (w *Watcher) Add(pluginDir string) error {
	return w.fs.Add(pluginDir)
}

// Events exposes the underlying fsnotify event channel.
func (w *Watcher) Events() <-chan fsnotify.Event {
	return w.fs.Events
}

// Errors exposes the underlying fsnotify error channel.
func (w *Watcher) Errors() <-chan error {
	return w.fs.Errors
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

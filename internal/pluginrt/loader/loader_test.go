package loader

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, name, id string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
[plugin]
id = "` + id + `"
name = "` + id + `"
version = "0.1.0"
plugin_type = "extension"
capabilities = []
`
	if err := os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverInDirectorySkipsNonDirsAndMissingManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "good", "good-plugin")
	if err := os.WriteFile(filepath.Join(root, "notadir"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := discoverInDirectory(root, map[string]string{}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Manifest.Plugin.ID != "good-plugin" {
		t.Errorf("found = %+v", found)
	}
}

func TestDiscoverInDirectoryFirstDirWinsOnDuplicateID(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "a", "dup")
	writeManifest(t, root, "b", "dup")

	seen := map[string]string{}
	found, err := discoverInDirectory(root, seen, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("found = %+v, want exactly one winner for duplicate id", found)
	}
}

func TestDiscoverInDirectoryMissingReturnsNilNotError(t *testing.T) {
	found, err := discoverInDirectory(filepath.Join(t.TempDir(), "missing"), map[string]string{}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Errorf("found = %v, want nil for missing directory", found)
	}
}

func TestDiscoverInWithLoggerPrefersFirstDirOnDuplicateID(t *testing.T) {
	userRoot := t.TempDir()
	systemRoot := t.TempDir()
	writeManifest(t, userRoot, "x", "X")
	writeManifest(t, systemRoot, "x", "X")

	found, err := DiscoverInWithLogger(slog.Default(), userRoot, systemRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("found = %+v, want exactly one winner for duplicate id across directories", found)
	}
	if found[0].Dir != filepath.Join(userRoot, "x") {
		t.Errorf("found[0].Dir = %q, want the user (first-scanned) directory to win", found[0].Dir)
	}
}

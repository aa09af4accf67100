package pluginrt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/pkg/pluginapi"
)

func writePlugin(t *testing.T, dir, id string, caps []string) pluginapi.Manifest {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	prog := pluginapi.Program{
		Version: pluginapi.SupportedVersion,
		Constants: []pluginapi.Constant{
			{Type: pluginapi.ConstString, Value: "info"},
			{Type: pluginapi.ConstString, Value: "hi from " + id},
		},
		Functions: []pluginapi.Function{{
			Name: "main",
			Instructions: []pluginapi.Instruction{
				{Op: pluginapi.OpLoadConst, Index: 0},
				{Op: pluginapi.OpLoadConst, Index: 1},
				{Op: pluginapi.OpCall, Name: "log", Count: 2},
				{Op: pluginapi.OpReturn},
			},
		}},
		EntryPoint: "main",
	}
	encoded, err := prog.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.fzb"), encoded, 0o644); err != nil {
		t.Fatal(err)
	}
	return pluginapi.Manifest{
		Plugin: pluginapi.Metadata{
			ID:      id,
			Name:    id,
			Version: "0.1.0",
			Type:    pluginapi.PluginTypeExtension,
		},
		Capabilities: caps,
	}
}

func testHostFor(pluginID string, caps domain.CapabilitySet) HostFunctions {
	return &recordingHost{}
}

func TestManagerLoadAndCallDispatchesIntoVM(t *testing.T) {
	dir := t.TempDir()
	manifest := writePlugin(t, dir, "greeter", nil)

	m := NewManager(testHostFor)
	if err := m.Load(dir, manifest); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Call(context.Background(), "greeter", "", nil); err != nil {
		t.Fatal(err)
	}
	if got := m.List(); len(got) != 1 || got[0] != "greeter" {
		t.Errorf("List() = %v", got)
	}
}

func TestManagerCallUnknownPluginReturnsNotFoundError(t *testing.T) {
	m := NewManager(testHostFor)
	_, err := m.Call(context.Background(), "missing", "", nil)
	if _, ok := err.(*domain.PluginNotFoundError); !ok {
		t.Fatalf("err = %v, want PluginNotFoundError", err)
	}
}

func TestManagerDisabledPluginRejectsCall(t *testing.T) {
	dir := t.TempDir()
	manifest := writePlugin(t, dir, "sleepy", nil)

	m := NewManager(testHostFor)
	if err := m.Load(dir, manifest); err != nil {
		t.Fatal(err)
	}
	if err := m.Disable("sleepy"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Call(context.Background(), "sleepy", "", nil); err == nil {
		t.Fatal("expected call into disabled plugin to fail")
	}
}

func TestManagerUnregisterRemovesInstance(t *testing.T) {
	dir := t.TempDir()
	manifest := writePlugin(t, dir, "temp", nil)

	m := NewManager(testHostFor)
	if err := m.Load(dir, manifest); err != nil {
		t.Fatal(err)
	}
	m.Unregister("temp")

	if _, err := m.Get("temp"); err == nil {
		t.Fatal("expected Get to fail after Unregister")
	}
}

func writeManifestFile(t *testing.T, dir, id string) {
	t.Helper()
	contents := "[plugin]\nid = \"" + id + "\"\nname = \"" + id + "\"\nversion = \"0.1.0\"\nplugin_type = \"extension\"\n\ncapabilities = []\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManagerWatchForChangesReloadsOnBytecodeWrite(t *testing.T) {
	dir := t.TempDir()
	manifest := writePlugin(t, dir, "watched", nil)
	writeManifestFile(t, dir, "watched")

	m := NewManager(testHostFor)
	if err := m.Load(dir, manifest); err != nil {
		t.Fatal(err)
	}
	before, err := m.Get("watched")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.WatchForChanges(ctx, nil); err != nil {
		t.Fatalf("WatchForChanges: %v", err)
	}

	// Rewriting the bytecode file in place should trigger a reload without
	// the plugin ever disappearing from the registry.
	writePlugin(t, dir, "watched", nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if inst, err := m.Get("watched"); err == nil && inst != before {
			if _, callErr := m.Call(context.Background(), "watched", "", nil); callErr == nil {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("plugin was not reloaded (or broke) after bytecode write")
}

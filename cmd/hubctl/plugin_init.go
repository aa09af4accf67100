package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/raibid-labs/scryhub/pkg/pluginapi"
)

// manifestTemplate mirrors the teacher's cmd/gk embedded manifest.toml.tmpl,
// inlined with text/template instead of go:embed since hubctl ships a
// single binary with no accompanying template directory.
const manifestTemplate = `[plugin]
id = "{{.ID}}"
name = "{{.Name}}"
version = "0.1.0"
description = "A scryhub plugin"
authors = []
license = "MIT"
plugin_type = "extension"

capabilities = []
`

func newPluginCmd() *cobra.Command {
	plugin := &cobra.Command{
		Use:   "plugin",
		Short: "Plugin development commands",
	}
	plugin.AddCommand(newPluginInitCmd())
	return plugin
}

func newPluginInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new plugin: a manifest.toml and a minimal plugin.fzb bytecode skeleton",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			id := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
			dir := filepath.Join("plugins", id)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create plugin dir: %w", err)
			}

			tmpl, err := template.New("manifest").Parse(manifestTemplate)
			if err != nil {
				return err
			}
			var buf strings.Builder
			if err := tmpl.Execute(&buf, struct{ ID, Name string }{ID: id, Name: name}); err != nil {
				return err
			}
			manifestPath := filepath.Join(dir, "manifest.toml")
			if err := os.WriteFile(manifestPath, []byte(buf.String()), 0o644); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}

			// Sanity-check the manifest we just wrote parses the way
			// pluginrt's loader will parse it at discovery time.
			if _, err := pluginapi.ParseManifest([]byte(buf.String())); err != nil {
				return fmt.Errorf("generated manifest failed to parse: %w", err)
			}

			program := skeletonProgram(id)
			encoded, err := program.Encode()
			if err != nil {
				return fmt.Errorf("encode skeleton bytecode: %w", err)
			}
			bcPath := filepath.Join(dir, "plugin.fzb")
			if err := os.WriteFile(bcPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write bytecode: %w", err)
			}

			fmt.Printf("created plugin %q at %s\n", id, dir)
			return nil
		},
	}
}

// skeletonProgram builds the smallest valid bytecode program: one function
// ("main") that returns null immediately, enough for LoadProgram/Validate to
// accept it and for a plugin author to start filling in real instructions.
func skeletonProgram(pluginID string) pluginapi.Program {
	return pluginapi.Program{
		Version: pluginapi.SupportedVersion,
		Metadata: pluginapi.ProgramMetadata{
			PluginID:      pluginID,
			PluginVersion: "0.1.0",
		},
		Constants: []pluginapi.Constant{
			{Type: pluginapi.ConstNull},
		},
		Functions: []pluginapi.Function{
			{
				Name:   "main",
				Params: nil,
				Instructions: []pluginapi.Instruction{
					{Op: pluginapi.OpLoadConst, Index: 0},
					{Op: pluginapi.OpReturn},
				},
				LocalCount: 0,
			},
		},
		EntryPoint: "main",
	}
}

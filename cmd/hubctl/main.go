// Command hubctl is the hub's admin/dev CLI: scaffolding a new plugin and
// issuing thin JSON-RPC calls against a running hubd over its loopback
// socket, adapted from the teacher's cmd/gk CLI (internal/routing-free,
// single binary with subcommands) but built on spf13/cobra instead of a
// raw os.Args switch, matching SPEC_FULL.md §6's CLI conventions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raibid-labs/scryhub/internal/hubconfig"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hubctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "hubctl",
		Short: "Admin and development CLI for the scryhub daemon",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (defaults to $XDG_CONFIG_HOME/scryhub/config.toml)")

	root.AddCommand(newPluginCmd())
	root.AddCommand(newStatusCmd(&configPath))
	root.AddCommand(newSyncCmd(&configPath))
	return root
}

func loadConfig(path string) (hubconfig.Config, error) {
	return hubconfig.Load(path)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print every provider's sync status from a running hubd",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			result, err := callRPC(cfg.Daemon.BindAddress, "sync.status", nil)
			if err != nil {
				return err
			}
			var status map[string]any
			if err := json.Unmarshal(result, &status); err != nil {
				return err
			}
			pretty, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(pretty))
			return nil
		},
	}
}

func newSyncCmd(configPath *string) *cobra.Command {
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Provider sync controls",
	}
	sync.AddCommand(&cobra.Command{
		Use:   "trigger <provider-id>",
		Short: "Request an out-of-band sync for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if _, err := callRPC(cfg.Daemon.BindAddress, "sync.trigger", args[0]); err != nil {
				return err
			}
			fmt.Printf("triggered sync for %s\n", args[0])
			return nil
		},
	})
	return sync
}

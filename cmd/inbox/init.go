package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initStoreRef string

func init() {
	initCmd.Flags().StringVar(&initStoreRef, "store", "", "Store reference to sync")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <api-key>",
	Short: "Store API key in ~/.shopdesk/inbox.toml",
	Long:  "Initialize the inbox CLI by storing your API key (and optionally your store) in the local configuration file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Default.APIKey = args[0]
		if initStoreRef != "" {
			cfg.Default.StoreRef = initStoreRef
		}
		if cfg.Sync.SnapshotPath == "" {
			cfg.Sync.SnapshotPath = defaultSnapshotPath
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Printf("API key saved to %s\n", path)
		if cfg.Default.StoreRef == "" {
			fmt.Println("Set your store with 'inbox config set default.store_ref <ref>'.")
		}
		return nil
	},
}

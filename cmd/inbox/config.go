package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

var configShowRaw bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowRaw, "raw", false, "Print the config file as stored")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// configEntry is one effective setting and where its value came from.
type configEntry struct {
	Key    string
	Value  string
	Source string // file, env, or default
}

// configEntries lists the settings in effect. file is the config as stored and
// eff the same config after environment overrides.
func configEntries(file, eff *Config) []configEntry {
	pick := func(key, stored, effective, def string) configEntry {
		switch {
		case effective != stored:
			return configEntry{key, effective, "env"}
		case stored == "":
			return configEntry{key, def, "default"}
		}
		return configEntry{key, stored, "file"}
	}
	apiKey := pick("default.api_key", file.Default.APIKey, eff.Default.APIKey, "(not set)")
	if apiKey.Source != "default" {
		apiKey.Value = maskKey(apiKey.Value)
	}
	return []configEntry{
		apiKey,
		pick("default.base_url", file.Default.BaseURL, eff.Default.BaseURL, inbox.DefaultBaseURL),
		pick("default.store_ref", file.Default.StoreRef, eff.Default.StoreRef, "(not set)"),
		pick("sync.poll_interval", file.Sync.PollInterval, eff.Sync.PollInterval, inbox.DefaultPollInterval.String()),
		pick("sync.delimiter", file.Sync.Delimiter, eff.Sync.Delimiter, inbox.DefaultDelimiter),
		pick("sync.snapshot_path", file.Sync.SnapshotPath, eff.Sync.SnapshotPath, defaultSnapshotPath),
		pick("sync.timezone", file.Sync.Timezone, eff.Sync.Timezone, "UTC"),
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage inbox configuration",
	Long:  "View or modify the inbox CLI configuration stored in ~/.shopdesk/inbox.toml.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings in effect",
	Long:  "Print every setting with its effective value and whether it comes from the file, the environment, or the built-in default.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if configShowRaw {
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("No configuration file found. Run 'inbox init <api-key>' to create one.")
					return nil
				}
				return fmt.Errorf("cannot read config file: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}

		file, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Printf("# %s\n", path)
		for _, e := range configEntries(file, withEnv(file)) {
			fmt.Printf("%-20s %-40s (%s)\n", e.Key, e.Value, e.Source)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value using dot notation.\nExample: inbox config set sync.poll_interval 90s",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		for _, e := range configEntries(cfg, withEnv(cfg)) {
			if e.Key == key && e.Source == "env" {
				fmt.Printf("Note: %s is overridden by the environment.\n", key)
			}
		}
		return nil
	},
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
	"github.com/shopdesk/inbox/snapshot"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and local inbox state",
	Long:  "Display the effective configuration and a summary of the conversations saved in the local snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := effectiveConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		if cfg.Default.APIKey != "" {
			fmt.Printf("  API Key:       %s\n", maskKey(cfg.Default.APIKey))
		} else {
			fmt.Println("  API Key:       (not set)")
		}
		fmt.Printf("  Base URL:      %s\n", valueOrDefault(cfg.Default.BaseURL, inbox.DefaultBaseURL))
		fmt.Printf("  Store:         %s\n", valueOrDefault(cfg.Default.StoreRef, "(not set)"))
		interval, err := cfg.pollInterval()
		if err != nil {
			fmt.Printf("  Poll interval: %v\n", err)
		} else {
			fmt.Printf("  Poll interval: %s\n", interval)
		}
		fmt.Printf("  Snapshot:      %s\n", cfg.snapshotPath())

		snap, err := snapshot.Open(cfg.snapshotPath())
		if err != nil {
			fmt.Printf("\n  Error opening snapshot: %v\n", err)
			return nil
		}
		defer snap.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		convs, err := snap.Load(ctx)
		if err != nil {
			fmt.Printf("\n  Error reading snapshot: %v\n", err)
			return nil
		}

		store := inbox.NewStore()
		store.Restore(convs)

		fmt.Println()
		fmt.Println("Local inbox:")
		for _, scope := range inbox.Scopes {
			list := store.List(scope)
			messages := 0
			for _, c := range list {
				messages += len(c.Messages)
			}
			last := "never"
			if len(list) > 0 && !list[0].LastTimestamp.IsZero() {
				last = humanize.Time(list[0].LastTimestamp)
			}
			fmt.Printf("  %-8s %s conversations, %s messages, last activity %s\n",
				scope, humanize.Comma(int64(len(list))), humanize.Comma(int64(messages)), last)
		}
		return nil
	},
}

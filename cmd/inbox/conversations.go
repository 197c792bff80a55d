package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

var (
	convScope   string
	convFrom    string
	convTo      string
	convOutput  string
	convRefresh bool
)

// conversationRow is the listing view of one conversation.
type conversationRow struct {
	Scope        inbox.Scope `json:"scope" yaml:"scope"`
	ID           string      `json:"id" yaml:"id"`
	Counterpart  string      `json:"counterpart" yaml:"counterpart"`
	Subject      string      `json:"subject" yaml:"subject"`
	LastMessage  string      `json:"lastMessage" yaml:"lastMessage"`
	LastAt       time.Time   `json:"lastAt" yaml:"lastAt"`
	Messages     int         `json:"messages" yaml:"messages"`
	MessageCount int         `json:"messageCount" yaml:"messageCount"`
}

func init() {
	conversationsCmd.Flags().StringVar(&convScope, "scope", "all", "Scope to list: product, store, or all")
	conversationsCmd.Flags().StringVar(&convFrom, "from", "", "Only conversations last active on or after this day (YYYY-MM-DD)")
	conversationsCmd.Flags().StringVar(&convTo, "to", "", "Only conversations last active on or before this day (YYYY-MM-DD)")
	conversationsCmd.Flags().StringVarP(&convOutput, "output", "o", "table", "Output format: table, json, or yaml")
	conversationsCmd.Flags().BoolVar(&convRefresh, "refresh", false, "Refresh from the server before listing")
	rootCmd.AddCommand(conversationsCmd)
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations",
	Long:    "List product and store conversations, most recent first, from the local snapshot or after a refresh.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes := inbox.Scopes
		if convScope != "all" {
			scope, err := inbox.ParseScope(convScope)
			if err != nil {
				return err
			}
			scopes = []inbox.Scope{scope}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		loc, _ := s.cfg.location()
		from, err := parseDay(convFrom, loc)
		if err != nil {
			return err
		}
		to, err := parseDay(convTo, loc)
		if err != nil {
			return err
		}
		if (from == nil) != (to == nil) {
			return fmt.Errorf("--from and --to must be given together")
		}

		if convRefresh {
			var err error
			if len(scopes) == 1 {
				_, err = s.inbox.SwitchScope(ctx, scopes[0], from, to)
			} else {
				err = s.inbox.Refresh(ctx)
			}
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			if err := s.save(ctx); err != nil {
				return err
			}
		}

		var rows []conversationRow
		for _, scope := range scopes {
			for _, c := range s.inbox.Conversations(scope, from, to) {
				rows = append(rows, conversationRow{
					Scope:        scope,
					ID:           c.ID,
					Counterpart:  c.Counterpart,
					Subject:      c.Subject.Label(),
					LastMessage:  c.LastMessage,
					LastAt:       c.LastTimestamp,
					Messages:     len(c.Messages),
					MessageCount: c.MessageCount,
				})
			}
		}
		return printConversations(rows, convOutput)
	},
}

func printConversations(rows []conversationRow, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(rows)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	case "table", "":
		if len(rows) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}
		for _, r := range rows {
			last := "-"
			if !r.LastAt.IsZero() {
				last = humanize.Time(r.LastAt)
			}
			fmt.Printf("  %-8s %s  %-28s %-20s %3d  %-14s %s\n",
				r.Scope, shortID(r.ID), truncate(r.Counterpart, 28), truncate(r.Subject, 20),
				r.Messages, last, truncate(r.LastMessage, 40))
		}
	default:
		return fmt.Errorf("unknown output format %q (valid: table, json, yaml)", format)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:   "open <scope> <conversation-id>",
	Short: "Refresh and print one conversation",
	Long:  "Fetch the latest replies of a conversation and print the whole thread.\nThe id may be abbreviated to any unique prefix.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := inbox.ParseScope(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s, err := openSession(ctx, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		conv, err := resolveConversation(s.inbox.Store(), scope, args[1])
		if err != nil {
			return err
		}
		updated, err := s.inbox.Open(ctx, scope, conv.ID)
		if err != nil {
			fmt.Printf("Could not refresh, showing saved thread: %v\n\n", err)
		} else if err := s.save(ctx); err != nil {
			return err
		}

		printThread(updated)
		return nil
	},
}

func printThread(c inbox.Conversation) {
	fmt.Printf("%s (%s)\n", c.Counterpart, c.Subject.Label())
	fmt.Printf("ID: %s\n\n", c.ID)
	if len(c.Messages) == 0 {
		fmt.Println("  No messages.")
		return
	}
	for _, m := range c.Messages {
		fmt.Printf("  [%s] %-4s %s\n", m.Timestamp.Local().Format("Jan 02 15:04"), senderName(m.Sender), m.Text)
	}
}

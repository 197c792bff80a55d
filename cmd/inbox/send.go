package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopdesk/inbox"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <scope> <conversation-id> <text...>",
	Short: "Reply to a conversation",
	Long:  "Send a reply into an existing conversation. A rejected reply is removed from the local thread again.",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := inbox.ParseScope(args[0])
		if err != nil {
			return err
		}
		text := strings.Join(args[2:], " ")

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

		msg, err := s.inbox.Send(ctx, scope, conv.ID, text)
		var sendErr *inbox.SendError
		switch {
		case errors.As(err, &sendErr):
			fmt.Printf("Reply not delivered: %v\n", sendErr.Err)
			fmt.Printf("Text to retry: %s\n", sendErr.Message.Text)
			return err
		case err != nil:
			return err
		}

		if err := s.save(ctx); err != nil {
			return err
		}
		fmt.Printf("Sent to %s at %s\n", conv.Counterpart, msg.Timestamp.Local().Format("15:04:05"))
		return nil
	},
}

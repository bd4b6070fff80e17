package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/medbot/internal/cli"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Answer a message locally, without the HTTP server",
		Long: `Run the full chat pipeline against the local provider database.
The message is all remaining arguments joined by spaces, so quoting is optional.

Examples:
  medbot chat I have a skin rash in Karachi
  medbot chat -o json "heart specialist"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := initializeComponents(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			resp := components.Chat.Reply(context.Background(), buildMessage(args))
			return cli.WriteChatResponse(cmd.OutOrStdout(), resp, cli.ParseFormat(a.output))
		},
	}
}

// buildMessage joins positional args so multi-word messages work with or without quotes.
func buildMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

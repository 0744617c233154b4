package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/glowly/internal/cli"
	"github.com/vbonduro/glowly/internal/conversation"
)

func newChatCmd(e *env) *cobra.Command {
	var (
		photoPaths []string
		country    string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the skincare assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			photos, err := cli.PhotoDataURLs(photoPaths)
			if err != nil {
				return err
			}
			if country == "" {
				country, err = cli.PromptForCountry(e.cfg.Country)
				if errors.Is(err, cli.ErrQuit) {
					return nil
				}
				if err != nil {
					return err
				}
			}

			a, err := e.app()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			responder, err := a.Responder(country)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.Title("glowly chat"))
			history := conversation.NewHistory()
			for {
				message, err := cli.PromptForMessage()
				if errors.Is(err, cli.ErrQuit) {
					return nil
				}
				if err != nil {
					return err
				}

				turn := conversation.User(message)
				reply, err := responder.Respond(cmd.Context(), photos, append(history.Snapshot(), turn))
				if err != nil {
					// The unanswered message is not kept so the user can retry.
					fmt.Fprintln(out, cli.RenderError(err))
					continue
				}
				history.Append(turn, conversation.Assistant(reply))
				fmt.Fprintln(out, cli.RenderReply(reply))
			}
		},
	}
	cmd.Flags().StringSliceVarP(&photoPaths, "photo", "p", nil, "face photo to share with the assistant (repeatable)")
	cmd.Flags().StringVarP(&country, "country", "c", "", "shopping country code")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/glowly/internal/cli"
	"github.com/vbonduro/glowly/internal/workflow"
)

func newConsultCmd(e *env) *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "consult <front> [left] [right]",
		Short: "Run the four-step consultation on face photos",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			photos, err := cli.PhotoDataURLs(args)
			if err != nil {
				return err
			}
			if country == "" {
				country = e.cfg.Country
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
			prompts, err := a.Prompts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.Title("Consultation"))
			seq := workflow.NewSequencer(responder, prompts, e.logger)
			res, err := seq.Run(cmd.Context(), photos, func(ev workflow.StepEvent) {
				fmt.Fprintln(out, cli.RenderStep(ev))
			})

			var verr *workflow.VerificationError
			if errors.As(err, &verr) {
				fmt.Fprintln(out, cli.RenderError(verr))
				return fmt.Errorf("photos rejected")
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out, cli.RenderRatings(res.Ratings))
			fmt.Fprintln(out, cli.RenderProducts(res.Products))
			return nil
		},
	}
	cmd.Flags().StringVarP(&country, "country", "c", "", "shopping country code (defaults to DEFAULT_COUNTRY)")
	return cmd
}

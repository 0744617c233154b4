package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/glowly/internal/cli"
	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/skin"
)

func newAnalyzeCmd(e *env) *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Derive pixel skin metrics from a photo",
		Long:  "Derive the five heuristic skin metrics from a photo. With --uid the scan is also stored, replacing that user's previous scan.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			var scan *domain.Scan
			if uid != "" {
				scan, err = storeScan(cmd, e, uid, data)
			} else {
				scan, err = analyzeOnly(data)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.Title("Skin scan"))
			fmt.Fprintln(out, cli.RenderScan(scan))
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "store the scan for this user id")
	return cmd
}

func analyzeOnly(data []byte) (*domain.Scan, error) {
	img, format, err := skin.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	report, err := skin.AnalyzeImage(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &domain.Scan{
		MimeType: "image/" + format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Summary:  report.Summary,
		Metrics:  report.Metrics,
	}, nil
}

func storeScan(cmd *cobra.Command, e *env, uid string, data []byte) (*domain.Scan, error) {
	a, err := e.app()
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	svc, err := a.Service()
	if err != nil {
		return nil, err
	}
	return svc.AnalyzeScan(cmd.Context(), uid, data, "")
}

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vbonduro/glowly/internal/app"
	"github.com/vbonduro/glowly/internal/config"
	"github.com/vbonduro/glowly/internal/logging"
)

const version = "0.1.0"

// env is the configuration and logger shared by every subcommand.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func newRootCmd() *cobra.Command {
	e := &env{cleanup: func() {}}

	root := &cobra.Command{
		Use:           "glowly",
		Short:         "Skin scan analysis and skincare consultation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e.cfg = config.Load()
			format := e.cfg.LogFormat
			if cmd.Name() != "serve" {
				format = "text"
			}
			logger, cleanup, err := logging.New(e.cfg.LogLevel, format, e.cfg.LogFile)
			if err != nil {
				return err
			}
			e.logger = logger
			e.cleanup = cleanup
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			e.cleanup()
		},
	}

	root.AddCommand(
		newServeCmd(e),
		newAnalyzeCmd(e),
		newConsultCmd(e),
		newChatCmd(e),
		newMigrateCmd(e),
	)
	return root
}

func (e *env) app() (*app.App, error) {
	return app.New(e.cfg, e.logger)
}

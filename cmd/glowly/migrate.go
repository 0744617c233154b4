package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/glowly/internal/db"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := db.Open(e.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			version, dirty, err := db.Version(database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at version %d (dirty=%t)\n", e.cfg.DBPath, version, dirty)
			return nil
		},
	}
}

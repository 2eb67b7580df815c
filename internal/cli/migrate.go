package cli

import (
	"fmt"

	"irdinv/internal/db"
	"irdinv/internal/logs"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rename legacy columns, migrate tables and fix indexes, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})

			g, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			if sqlDB, err := g.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(g, cfg.Database.DropLegacyIndexes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

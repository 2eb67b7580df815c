package cli

import (
	"irdinv/server"

	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			var app server.App
			if err := app.Initialize(cfg); err != nil {
				_ = app.Close()
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

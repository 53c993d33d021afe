package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/k11v/web2app/internal/app"
)

func newSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Apply PostgreSQL migrations and create the S3 bucket",
		Long: `Apply PostgreSQL migrations and create the S3 bucket.

Backends that aren't configured are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.ParseConfig(os.Environ())
			if err != nil {
				return err
			}
			log := app.NewLogger(cmd.ErrOrStderr(), cfg.Development)
			return app.Setup(cmd.Context(), cfg, log)
		},
	}
}

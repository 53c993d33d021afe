package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	run := func() int {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := newRootCommand().ExecuteContext(ctx); err != nil {
			return 1
		}
		return 0
	}
	os.Exit(run())
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web2app",
		Short: "Convert web applications into Android APKs",
		Long: `Convert web applications into Android APKs.

Configuration is read from WEB2APP_* environment variables,
the same ones the server reads.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newBuildCommand(), newSetupCommand())
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"subsync/internal/interfaces/cli/migrate"
	"subsync/internal/interfaces/cli/server"
	"subsync/internal/interfaces/cli/sweep"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "subsync",
		Short: "Subsync - subscription lifecycle sync service",
		Long:  `Subsync keeps a local subscription store in sync with an external billing platform via webhooks, with a periodic expiry sweep as fallback.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		sweep.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

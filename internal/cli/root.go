// Package cli implements the warden command tree: start and stop for
// operators, status for inspection, and the hidden serve command that
// runs the HTTP pool master.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/warden/internal/config"
	"github.com/phrazzld/warden/internal/platform/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Process supervisor for queue workers and the HTTP serving pool",
	Long: `Warden launches and tears down the worker processes of a multi-role
deployment: one queue-scoped task worker per declared role, a singleton
periodic scheduler, and an HTTP serving pool that recycles its workers
behind a single listening socket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default warden.yaml, then warden.template.yaml)")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, serveCmd)
}

// loadApp loads configuration and sets up the structured logger shared
// by every subcommand.
func loadApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Setup(cfg.LogLevel)
	return cfg, log, nil
}

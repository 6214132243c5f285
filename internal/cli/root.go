// Package cli implements envctl, the operator command line for the monitor.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/app"
	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/logging"
	"github.com/smukkama/env-monitor/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "envctl",
	Short: "Operate the environmental monitor from the command line",
	Long: `envctl evaluates alert thresholds against the live API, inspects and
clears the response cache and reports the daily refresh schedule. It reads
the same environment (and .env file) as the monitor service.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.App, "envctl")
}

// loadThresholds resolves thresholds the way the monitor does on startup,
// including rows saved in Postgres when the database is enabled.
func loadThresholds(ctx context.Context, cfg *config.Config) (alerting.Thresholds, error) {
	if !cfg.Database.Enabled {
		return app.LoadThresholds(ctx, cfg.Alerts, nil)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return app.LoadThresholds(ctx, cfg.Alerts, db)
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/smukkama/env-monitor/internal/app"
	"github.com/smukkama/env-monitor/internal/logging"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger not built yet
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := logging.Setup(cfg.App, "monitor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("app stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("monitor stopped")
}

package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/smukkama/env-monitor/pkg/config"
)

// New builds the process logger: colourised text in dev, JSON in prod.
func New(cfg config.AppConfig, service string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg, service)
}

func newWithWriter(w io.Writer, cfg config.AppConfig, service string) *slog.Logger {
	if cfg.Env == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("service", service)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"service", service,
		"env", cfg.Env,
	)
}

// Setup builds the logger and installs it as the slog default.
func Setup(cfg config.AppConfig, service string) *slog.Logger {
	logger := New(cfg, service)
	slog.SetDefault(logger)
	return logger
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/logging"
	"github.com/smukkama/env-monitor/internal/queue"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}
	logger := logging.Setup(cfg.App, "dbwriter")

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "dbwriter-group")
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchWriter := queue.NewBatchWriter(consumer, db, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval, logger)
	batchWriter.Start(ctx)
	logger.Info("database writer running",
		"topic", cfg.Kafka.TopicAlerts,
		"batchSize", cfg.Kafka.BatchSize,
		"flushInterval", cfg.Kafka.FlushInterval.String(),
	)

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer.LogStats(logger)
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	batchWriter.Stop()
	logger.Info("database writer stopped")
}

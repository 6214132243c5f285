package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/env-monitor/internal/logging"
	"github.com/smukkama/env-monitor/internal/notification"
	"github.com/smukkama/env-monitor/internal/protocol"
	"github.com/smukkama/env-monitor/internal/queue"
	"github.com/smukkama/env-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}
	logger := logging.Setup(cfg.App, "notification")

	notifier := notification.NewEmailNotifier(&cfg.SMTP)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("smtp unavailable, alerts will be logged only", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notification service running", "topic", cfg.Kafka.TopicAlerts)

	for {
		msg, err := consumer.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logger.Error("failed to consume message", "error", err)
			time.Sleep(time.Second)
			continue
		}

		event, err := protocol.DecodeAlertEvent(msg.Value)
		if err != nil {
			logger.Warn("dropping undecodable alert", "offset", msg.Offset, "error", err)
			_ = consumer.Commit(ctx, msg)
			continue
		}

		if event.Severity == protocol.SeverityCritical {
			if err := notifier.SendAlertEvent(event); err != nil {
				// left uncommitted so the group redelivers it
				logger.Error("failed to send alert email", "id", event.ID, "error", err)
				continue
			}
			logger.Info("alert email sent", "id", event.ID, "location", event.Location, "metric", event.Metric)
		}

		if err := consumer.Commit(ctx, msg); err != nil {
			logger.Error("failed to commit offset", "error", err)
		}
	}

	logger.Info("notification service stopped")
}

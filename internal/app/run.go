package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/apiclient"
	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/monitor"
	"github.com/smukkama/env-monitor/internal/queue"
	"github.com/smukkama/env-monitor/internal/refresh"
	"github.com/smukkama/env-monitor/internal/server"
	"github.com/smukkama/env-monitor/pkg/config"
)

// Run starts the monitor and blocks until ctx is cancelled or the HTTP server fails
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.App.Env,
		"logLevel", cfg.App.LogLevel.String(),
		"apiBaseURL", cfg.API.BaseURL,
		"cacheBackend", cfg.Cache.Backend,
		"refreshTime", cfg.Refresh.TimeOfDay,
		"refreshTimezone", cfg.Refresh.Location.String(),
		"httpAddr", cfg.HTTP.Addr,
		"dbEnabled", cfg.Database.Enabled,
		"kafkaEnabled", cfg.Kafka.Enabled,
		"mqttEnabled", cfg.MQTT.Enabled,
		"webhookEnabled", cfg.Webhook.Enabled,
	)

	store, closeStore, err := OpenCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("cache store close", "error", err)
		}
	}()
	responseCache := NewCache(store, cfg.Cache, logger)

	scheduler, err := refresh.NewScheduler(responseCache, cfg.Refresh.TimeOfDay, cfg.Refresh.Location)
	if err != nil {
		return fmt.Errorf("refresh schedule: %w", err)
	}

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Connect(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
			return err
		}
		logger.Info("database connection successful")
	}

	thresholds, err := LoadThresholds(ctx, cfg.Alerts, db)
	if err != nil {
		return err
	}
	var repo alerting.ThresholdRepository
	if db != nil {
		repo = db
	}
	settings := alerting.NewSettings(thresholds, repo)

	notifier, disconnect := BuildNotifier(ctx, cfg, logger)
	defer disconnect()

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.RetryMax, logger)
	feed := alerting.NewFeed(cfg.Alerts.FeedCapacity)

	pollerOpts := []monitor.PollerOption{monitor.WithPollerLogger(logger)}
	var tracker *alerting.BreachTracker
	if cfg.Alerts.TrackBreaches {
		if err := alerting.CheckKeyspace(cfg.Cache.Prefix); err != nil {
			return err
		}
		tracker = alerting.NewBreachTracker(store)
		pollerOpts = append(pollerOpts, monitor.WithTracker(tracker))
	}
	if cfg.Kafka.Enabled {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.NumPartitions, 1); err != nil {
			logger.Info("topic creation skipped (may already exist)", "topic", cfg.Kafka.TopicAlerts, "error", err)
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		pollerOpts = append(pollerOpts, monitor.WithPublisher(producer))
	}

	poller := monitor.NewAlertsPoller(client, settings, feed, notifier, pollerOpts...)
	loader := monitor.NewLoader(client, responseCache, scheduler, notifier, logger)

	svc := monitor.NewService(poller, loader, scheduler, monitor.Intervals{
		AlertsPoll:    cfg.Alerts.PollInterval,
		DashboardPoll: cfg.Refresh.DataInterval,
		RefreshCheck:  cfg.Refresh.CheckInterval,
	}, logger)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	deps := server.Deps{
		Feed:     feed,
		Settings: settings,
		Poller:   poller,
		Loader:   loader,
		Tracker:  tracker,
	}
	if db != nil {
		deps.History = db
	}

	srv := server.NewHTTPServer(cfg.HTTP.Addr, deps, logger)
	errCh, err := srv.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/cache"
	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/notification"
	"github.com/smukkama/env-monitor/pkg/config"
)

// OpenCacheStore opens the configured durable store. The returned close
// function releases it.
func OpenCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func() error, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return cache.NewRedisStore(client), client.Close, nil

	case "sqlite":
		store, err := cache.OpenSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}
}

// NewCache wraps store with the configured prefix and TTL
func NewCache(store cache.Store, cfg config.CacheConfig, logger *slog.Logger) *cache.Cache {
	return cache.New(store,
		cache.WithPrefix(cfg.Prefix),
		cache.WithTTL(cfg.TTL),
		cache.WithLogger(logger),
	)
}

// LoadThresholds resolves the initial thresholds: defaults, then the YAML
// file if configured, then rows persisted in Postgres when db is non-nil.
func LoadThresholds(ctx context.Context, cfg config.AlertsConfig, db *database.DB) (alerting.Thresholds, error) {
	thresholds := alerting.DefaultThresholds()

	if cfg.ThresholdsFile != "" {
		fromFile, err := alerting.LoadThresholdsFile(cfg.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		thresholds = fromFile
	}

	if db != nil {
		stored, err := db.LoadThresholds(ctx, thresholds)
		if err != nil {
			return nil, err
		}
		thresholds = stored
	}
	return thresholds, nil
}

// BuildNotifier assembles the notification fan-out. The log channel receives
// everything; webhook and MQTT only receive warnings and errors.
func BuildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notification.Notifier, func()) {
	notifiers := notification.Multi{notification.NewLogNotifier(logger)}
	cleanup := func() {}

	if cfg.Webhook.Enabled {
		notifiers = append(notifiers, notification.MinLevel(notification.LevelWarning,
			notification.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)))
		logger.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}

	if cfg.MQTT.Enabled {
		mqttNotifier := notification.NewMQTTNotifier(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.QoS, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := mqttNotifier.Connect(connectCtx)
		cancel()
		if err != nil {
			mqttNotifier.Disconnect()
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		} else {
			notifiers = append(notifiers, notification.MinLevel(notification.LevelWarning, mqttNotifier))
			cleanup = mqttNotifier.Disconnect
		}
	}

	return notifiers, cleanup
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Cache    CacheConfig
	Refresh  RefreshConfig
	Alerts   AlertsConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	MQTT     MQTTConfig
	Webhook  WebhookConfig
	SMTP     SMTPConfig
}

type AppConfig struct {
	Env      string
	LogLevel slog.Level
}

// APIConfig points at the environmental data API
type APIConfig struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

type CacheConfig struct {
	Backend    string // memory, redis or sqlite
	Prefix     string
	TTL        time.Duration
	SQLitePath string
}

type RefreshConfig struct {
	TimeOfDay     string // HH:MM, local to Location
	Location      *time.Location
	CheckInterval time.Duration
	DataInterval  time.Duration
}

type AlertsConfig struct {
	PollInterval   time.Duration
	FeedCapacity   int
	ThresholdsFile string
	TrackBreaches  bool
}

type HTTPConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicAlerts   string
	NumPartitions int
	BatchSize     int
	FlushInterval time.Duration
}

type MQTTConfig struct {
	Enabled bool
	Broker  string
	Topic   string
	QoS     int
}

type WebhookConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	appEnv := getEnv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	backend := getEnv("CACHE_BACKEND", "memory")
	switch backend {
	case "memory", "redis", "sqlite":
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q (allowed: memory, redis, sqlite)", backend)
	}

	loc := time.Local
	if tz := getEnv("REFRESH_TIMEZONE", ""); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_TIMEZONE %q: %w", tz, err)
		}
	}

	config := &Config{
		App: AppConfig{
			Env:      appEnv,
			LogLevel: level,
		},
		API: APIConfig{
			BaseURL:  strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
			Timeout:  getEnvAsDuration("API_TIMEOUT", 30*time.Second),
			RetryMax: getEnvAsInt("API_RETRY_MAX", 0),
		},
		Cache: CacheConfig{
			Backend:    backend,
			Prefix:     getEnv("CACHE_PREFIX", "env_monitor_"),
			TTL:        getEnvAsDuration("CACHE_TTL", time.Hour),
			SQLitePath: getEnv("CACHE_SQLITE_PATH", "env_monitor_cache.db"),
		},
		Refresh: RefreshConfig{
			TimeOfDay:     getEnv("REFRESH_TIME", "12:00"),
			Location:      loc,
			CheckInterval: getEnvAsDuration("REFRESH_CHECK_INTERVAL", time.Hour),
			DataInterval:  getEnvAsDuration("DASHBOARD_POLL_INTERVAL", 10*time.Minute),
		},
		Alerts: AlertsConfig{
			PollInterval:   getEnvAsDuration("ALERTS_POLL_INTERVAL", time.Minute),
			FeedCapacity:   getEnvAsInt("ALERTS_FEED_CAPACITY", 50),
			ThresholdsFile: getEnv("ALERTS_THRESHOLDS_FILE", ""),
			TrackBreaches:  getEnvAsBool("ALERTS_TRACK_BREACHES", false),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "env_user"),
			Password: getEnv("DB_PASSWORD", "env_pass"),
			DBName:   getEnv("DB_NAME", "env_monitor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "env.alerts"),

			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
			BatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("KAFKA_FLUSH_INTERVAL", 5*time.Second),
		},
		MQTT: MQTTConfig{
			Enabled: getEnvAsBool("MQTT_ENABLED", false),
			Broker:  getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			Topic:   getEnv("MQTT_TOPIC", "env-monitor/alerts"),
			QoS:     getEnvAsInt("MQTT_QOS", 1),
		},
		Webhook: WebhookConfig{
			Enabled: getEnvAsBool("WEBHOOK_ENABLED", false),
			URL:     getEnv("WEBHOOK_URL", ""),
			Secret:  getEnv("WEBHOOK_SECRET", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "env-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
	}

	if config.Webhook.Enabled && config.Webhook.URL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED is set")
	}
	for name, d := range map[string]time.Duration{
		"API_TIMEOUT":             config.API.Timeout,
		"CACHE_TTL":               config.Cache.TTL,
		"REFRESH_CHECK_INTERVAL":  config.Refresh.CheckInterval,
		"DASHBOARD_POLL_INTERVAL": config.Refresh.DataInterval,
		"ALERTS_POLL_INTERVAL":    config.Alerts.PollInterval,
		"KAFKA_FLUSH_INTERVAL":    config.Kafka.FlushInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s %s (must be positive)", name, d)
		}
	}
	if config.Alerts.FeedCapacity <= 0 {
		return nil, fmt.Errorf("invalid ALERTS_FEED_CAPACITY %d (must be positive)", config.Alerts.FeedCapacity)
	}

	return config, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

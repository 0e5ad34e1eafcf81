package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Event bus modes.
const (
	EventBusInline = "inline"
	EventBusRedis  = "redis"
	EventBusHTTP   = "http"
)

// Config holds all configuration for our application
type Config struct {
	Port        string
	Origin      string
	Environment string
	AppURL      string
	Database    DatabaseConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	Events      EventsConfig
	Webhook     WebhookConfig
	Scan        ScanConfig
	Notify      NotifyConfig
	Log         LogConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the event stream connection and consumer group settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
}

// MQTTConfig holds the ward scanner broker settings. An empty Broker disables
// the subscriber.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// EventsConfig selects how row-change events reach the notification rules.
type EventsConfig struct {
	Bus            string
	WebhookBaseURL string
}

// WebhookConfig holds the shared secret used to sign and verify webhook calls.
type WebhookConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// ScanConfig holds the scan reconciliation windows.
type ScanConfig struct {
	ConflictWindow   time.Duration
	WristbandWindow  time.Duration
	Cooldown         time.Duration
	IsolationWard    string
	MatchByPatientID bool
}

// NotifyConfig holds the notification rule settings.
type NotifyConfig struct {
	EarlyDischargeWindow time.Duration
	ForwardURL           string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "wardtrack"),
	}
	dbConfig.DSN = buildDSN(dbConfig)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	batchSize, err := strconv.ParseInt(getEnv("REDIS_BATCH_SIZE", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_BATCH_SIZE: %w", err)
	}
	redisConfig := RedisConfig{
		Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        redisDB,
		Stream:    getEnv("REDIS_EVENT_STREAM", "wardtrack:events"),
		Group:     getEnv("REDIS_CONSUMER_GROUP", "wardtrack-notify"),
		Consumer:  getEnv("REDIS_CONSUMER_NAME", hostnameOr("wardtrack-worker")),
		BatchSize: batchSize,
	}

	qos, err := strconv.ParseUint(getEnv("MQTT_QOS", "1"), 10, 8)
	if err != nil || qos > 2 {
		return nil, fmt.Errorf("invalid MQTT_QOS: %q", getEnv("MQTT_QOS", "1"))
	}
	mqttConfig := MQTTConfig{
		Broker:   getEnv("MQTT_BROKER", ""),
		ClientID: getEnv("MQTT_CLIENT_ID", "wardtrack-server"),
		Username: getEnv("MQTT_USERNAME", ""),
		Password: getEnv("MQTT_PASSWORD", ""),
		Topic:    getEnv("MQTT_SCAN_TOPIC", "wardtrack/wards/+/scans"),
		QoS:      byte(qos),
	}

	eventsConfig := EventsConfig{
		Bus:            getEnv("EVENT_BUS", EventBusInline),
		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", "http://localhost:3001/api/v1/webhooks"),
	}
	switch eventsConfig.Bus {
	case EventBusInline, EventBusRedis, EventBusHTTP:
	default:
		return nil, fmt.Errorf("invalid EVENT_BUS: %q", eventsConfig.Bus)
	}

	webhookTTL, err := getDuration("WEBHOOK_TOKEN_TTL", "5m")
	if err != nil {
		return nil, err
	}
	conflictWindow, err := getDuration("SCAN_CONFLICT_WINDOW", "5m")
	if err != nil {
		return nil, err
	}
	wristbandWindow, err := getDuration("SCAN_WRISTBAND_WINDOW", "5m")
	if err != nil {
		return nil, err
	}
	cooldown, err := getDuration("SCAN_COOLDOWN", "3s")
	if err != nil {
		return nil, err
	}
	matchByPatient, err := strconv.ParseBool(getEnv("SCAN_MATCH_BY_PATIENT_ID", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCAN_MATCH_BY_PATIENT_ID: %w", err)
	}
	earlyDischarge, err := getDuration("EARLY_DISCHARGE_WINDOW", "5m")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Origin:      getEnv("ORIGIN", "http://localhost:4200"),
		Environment: getEnv("ENV", "development"),
		AppURL:      getEnv("APP_URL", "http://localhost:3001"),
		Database:    dbConfig,
		Redis:       redisConfig,
		MQTT:        mqttConfig,
		Events:      eventsConfig,
		Webhook: WebhookConfig{
			Secret:   getEnv("WEBHOOK_SECRET", "default_webhook_secret"),
			Issuer:   getEnv("WEBHOOK_ISSUER", "wardtrack"),
			TokenTTL: webhookTTL,
		},
		Scan: ScanConfig{
			ConflictWindow:   conflictWindow,
			WristbandWindow:  wristbandWindow,
			Cooldown:         cooldown,
			IsolationWard:    getEnv("ISOLATION_WARD", "isolation_room"),
			MatchByPatientID: matchByPatient,
		},
		Notify: NotifyConfig{
			EarlyDischargeWindow: earlyDischarge,
			ForwardURL:           getEnv("NOTIFY_FORWARD_URL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Environment == "development"
}

// buildDSN renders the MySQL DSN. Times are parsed into time.Time and kept in UTC
// so that scan windows compare correctly across ward stations.
func buildDSN(db DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = db.Username
	mc.Passwd = db.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(db.Host, db.Port)
	mc.DBName = db.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

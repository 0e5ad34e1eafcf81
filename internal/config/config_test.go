package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ORIGIN", "ENV", "DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_NAME",
	"REDIS_ADDR", "REDIS_DB", "REDIS_BATCH_SIZE", "REDIS_EVENT_STREAM", "MQTT_BROKER", "MQTT_QOS",
	"EVENT_BUS", "WEBHOOK_SECRET", "WEBHOOK_TOKEN_TTL", "SCAN_CONFLICT_WINDOW", "SCAN_WRISTBAND_WINDOW",
	"SCAN_COOLDOWN", "SCAN_MATCH_BY_PATIENT_ID", "ISOLATION_WARD", "EARLY_DISCHARGE_WINDOW",
	"LOG_LEVEL", "LOG_FORMAT",
}

// unsetEnv clears the given keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
		os.Unsetenv(key)
	}
}

func TestLoadConfig_DefaultValues(t *testing.T) {
	unsetEnv(t, configKeys...)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "wardtrack", cfg.Database.Name)
	assert.Contains(t, cfg.Database.DSN, "tcp(localhost:3306)/wardtrack")
	assert.Contains(t, cfg.Database.DSN, "parseTime=true")

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "wardtrack:events", cfg.Redis.Stream)
	assert.Equal(t, int64(10), cfg.Redis.BatchSize)

	assert.Equal(t, "", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, EventBusInline, cfg.Events.Bus)

	assert.Equal(t, 5*time.Minute, cfg.Scan.ConflictWindow)
	assert.Equal(t, 5*time.Minute, cfg.Scan.WristbandWindow)
	assert.Equal(t, 3*time.Second, cfg.Scan.Cooldown)
	assert.Equal(t, "isolation_room", cfg.Scan.IsolationWard)
	assert.False(t, cfg.Scan.MatchByPatientID)
	assert.Equal(t, 5*time.Minute, cfg.Notify.EarlyDischargeWindow)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	unsetEnv(t, configKeys...)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("EVENT_BUS", "redis")
	t.Setenv("SCAN_CONFLICT_WINDOW", "90s")
	t.Setenv("SCAN_MATCH_BY_PATIENT_ID", "true")
	t.Setenv("ISOLATION_WARD", "iso_1")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Contains(t, cfg.Database.DSN, "tcp(db.internal:3307)")
	assert.Equal(t, EventBusRedis, cfg.Events.Bus)
	assert.Equal(t, 90*time.Second, cfg.Scan.ConflictWindow)
	assert.True(t, cfg.Scan.MatchByPatientID)
	assert.Equal(t, "iso_1", cfg.Scan.IsolationWard)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"EVENT_BUS":            "kafka",
		"SCAN_CONFLICT_WINDOW": "five minutes",
		"REDIS_DB":             "zero",
		"MQTT_QOS":             "3",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			unsetEnv(t, configKeys...)
			t.Setenv(key, value)

			_, err := LoadConfig()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestGetEnv(t *testing.T) {
	unsetEnv(t, "WARDTRACK_TEST_KEY")
	assert.Equal(t, "default-value", getEnv("WARDTRACK_TEST_KEY", "default-value"))

	t.Setenv("WARDTRACK_TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("WARDTRACK_TEST_KEY", "default-value"))
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "vitals", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "vitals/+/readings", cfg.Ingest.Topic)
	assert.Equal(t, "vitals:readings", cfg.Ingest.ReadingsStream)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 4, cfg.Ingest.Workers)

	assert.Equal(t, 12, cfg.Analysis.AnomalyWindow)
	assert.Equal(t, time.UTC, cfg.Analysis.Location)

	assert.Equal(t, 10*time.Minute, cfg.Cache.DatasetTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SummaryTTL)
	assert.Equal(t, "vitals:notifications", cfg.Notify.Stream)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_QOS", "0")
	t.Setenv("WORKERS", "8")
	t.Setenv("ANOMALY_WINDOW", "24")
	t.Setenv("TIMEZONE", "Asia/Shanghai")
	t.Setenv("SUMMARY_CACHE_TTL", "30")
	t.Setenv("NOTIFY_TO", "ward@example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, 24, cfg.Analysis.AnomalyWindow)
	assert.Equal(t, "Asia/Shanghai", cfg.Analysis.Location.String())
	assert.Equal(t, 30*time.Second, cfg.Cache.SummaryTTL)
	assert.Equal(t, "ward@example.com", cfg.Notify.To)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidValues(t *testing.T) {
	os.Clearenv()
	t.Setenv("BATCH_SIZE", "many")

	_, err := Load()
	assert.Error(t, err)

	os.Clearenv()
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}

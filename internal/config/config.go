package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // 容器镜像中可能没有时区数据库

	"vital-monitor/common/config"
)

// Config 生命体征监测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string // 如 ":8080"
	}

	// 设备数据接入
	Ingest struct {
		Topic          string // MQTT 订阅主题，如 "vitals/+/readings"
		ReadingsStream string // 读数流
		ConsumerGroup  string
		ConsumerName   string
		BatchSize      int // 每次从流读取的消息数
		Workers        int // 并行处理的患者数
	}

	Analysis struct {
		AnomalyWindow int            // 异常检测窗口（样本数），默认 12
		Location      *time.Location // 无时区时间戳所用时区
	}

	Cache struct {
		DatasetTTL time.Duration // 上传数据集缓存
		SummaryTTL time.Duration // 患者汇总缓存
	}

	Notify struct {
		Stream string // 通知交接流，外部发送方消费
		To     string // 默认收件地址
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitals")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vital-monitor")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Ingest.Topic = getEnv("MQTT_TOPIC", "vitals/+/readings")
	cfg.Ingest.ReadingsStream = getEnv("STREAM_READINGS", "vitals:readings")
	cfg.Ingest.ConsumerGroup = getEnv("CONSUMER_GROUP", "vital-monitor-group")
	cfg.Ingest.ConsumerName = getEnv("CONSUMER_NAME", "vital-monitor-1")
	batchSize, err := parseInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	cfg.Ingest.BatchSize = batchSize
	workers, err := parseInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.Ingest.Workers = workers

	window, err := parseInt("ANOMALY_WINDOW", 12)
	if err != nil {
		return nil, err
	}
	cfg.Analysis.AnomalyWindow = window
	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Analysis.Location = loc

	datasetTTL, err := parseInt("DATASET_CACHE_TTL", 600)
	if err != nil {
		return nil, err
	}
	cfg.Cache.DatasetTTL = time.Duration(datasetTTL) * time.Second
	summaryTTL, err := parseInt("SUMMARY_CACHE_TTL", 300)
	if err != nil {
		return nil, err
	}
	cfg.Cache.SummaryTTL = time.Duration(summaryTTL) * time.Second

	cfg.Notify.Stream = getEnv("STREAM_NOTIFY", "vitals:notifications")
	cfg.Notify.To = getEnv("NOTIFY_TO", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

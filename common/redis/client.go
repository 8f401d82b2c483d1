package redis

import (
	"context"
	"fmt"
	"time"

	"vital-monitor/common/config"

	"github.com/go-redis/redis/v8"
)

const (
	dialTimeout  = 5 * time.Second
	readTimeout  = 3 * time.Second // 阻塞读（XREADGROUP BLOCK）由 go-redis 自动延长
	writeTimeout = 3 * time.Second
)

// NewRedisClient 创建Redis客户端（不建立连接）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

// Connect 创建客户端并确认 Redis 可用；失败时关闭客户端
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := NewRedisClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close 关闭Redis连接（nil 安全）
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vital-monitor/internal/models"
	"vital-monitor/internal/store"

	"go.uber.org/zap"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// PatientSummary 患者最近一次聚合结果（缓存内容）
type PatientSummary struct {
	PatientID string        `json:"patient_id"`
	UpdatedAt time.Time     `json:"updated_at"`
	Report    models.Report `json:"report"`
}

// CacheManager 患者汇总缓存
type CacheManager struct {
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器，ttl <= 0 表示不过期
func NewCacheManager(kv store.KV, ttl time.Duration, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// SummaryKey 缓存 key：vitals:patient:{id}:summary
func SummaryKey(patientID string) string {
	return fmt.Sprintf("vitals:patient:%s:summary", patientID)
}

// UpdateSummary 写入患者汇总
func (c *CacheManager) UpdateSummary(ctx context.Context, patientID string, report models.Report) error {
	key := SummaryKey(patientID)

	jsonData, err := json.Marshal(PatientSummary{
		PatientID: patientID,
		UpdatedAt: time.Now().UTC(),
		Report:    report,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated patient summary cache",
		zap.String("patient_id", patientID),
		zap.String("key", key),
		zap.Int("total_alerts", report.Summary.TotalAlerts),
	)
	return nil
}

// GetSummary 读取患者汇总，不存在时返回 ErrCacheMiss
func (c *CacheManager) GetSummary(ctx context.Context, patientID string) (*PatientSummary, error) {
	raw, err := c.kv.Get(ctx, SummaryKey(patientID))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var s PatientSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &s, nil
}

// InvalidateSummary 删除患者汇总（阈值变更后调用）
func (c *CacheManager) InvalidateSummary(ctx context.Context, patientID string) error {
	return c.kv.Del(ctx, SummaryKey(patientID))
}
